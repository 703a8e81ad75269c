package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: awssdk.String("ses-msg-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("sns-msg-1")}, nil
}

func TestSESClient_SendEmail(t *testing.T) {
	api := &fakeSES{}
	id, err := NewSESClientFromAPI(api).SendEmail(context.Background(),
		"loans@example.com", "asha@example.com", "Loan sanctioned", "Your loan is sanctioned.")

	require.NoError(t, err)
	assert.Equal(t, "ses-msg-1", id)
	assert.Equal(t, "loans@example.com", awssdk.ToString(api.input.Source))
	assert.Equal(t, []string{"asha@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Loan sanctioned", awssdk.ToString(api.input.Message.Subject.Data))
	assert.Equal(t, "Your loan is sanctioned.", awssdk.ToString(api.input.Message.Body.Text.Data))

	_, err = NewSESClientFromAPI(&fakeSES{err: errors.New("throttled")}).SendEmail(context.Background(), "a", "b", "c", "d")
	assert.ErrorContains(t, err, "ses send email: throttled")
}

func TestSNSClient_SendSMS(t *testing.T) {
	api := &fakeSNS{}
	id, err := NewSNSClientFromAPI(api).SendSMS(context.Background(), "+919876543210", "NBFCLN", "Loan sanctioned")

	require.NoError(t, err)
	assert.Equal(t, "sns-msg-1", id)
	assert.Equal(t, "+919876543210", awssdk.ToString(api.input.PhoneNumber))
	assert.Equal(t, "NBFCLN", awssdk.ToString(api.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	assert.Equal(t, "Transactional", awssdk.ToString(api.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))

	api = &fakeSNS{}
	_, err = NewSNSClientFromAPI(api).SendSMS(context.Background(), "+919876543210", "", "x")
	require.NoError(t, err)
	_, hasSender := api.input.MessageAttributes["AWS.SNS.SMS.SenderID"]
	assert.False(t, hasSender)
}
