// Package kyc provides identity verification and credit bureau lookups for
// the sequential workflow.
package kyc

import (
	"context"
	"regexp"
	"strings"

	"loan-workers/internal/pipeline"
)

// FixedCreditScore is what the mock bureau reports for every PAN.
const FixedCreditScore = 750

var digits = regexp.MustCompile(`^[0-9]+$`)

func exactDigits(s string, n int) bool {
	return len(s) == n && digits.MatchString(s)
}

// MockVerifier accepts any well-formed identifier. It is deterministic.
type MockVerifier struct {
	NameOnRecord string
}

func NewMockVerifier() *MockVerifier {
	return &MockVerifier{NameOnRecord: "DEMO USER"}
}

func (m *MockVerifier) VerifyPAN(_ context.Context, pan string) (pipeline.IdentityCheck, error) {
	if !pipeline.ValidPAN(pan) {
		return pipeline.IdentityCheck{Message: "Invalid PAN format"}, nil
	}
	return pipeline.IdentityCheck{
		Verified:     true,
		Masked:       strings.ToUpper(pan),
		NameOnRecord: m.NameOnRecord,
		Message:      "PAN verified successfully",
	}, nil
}

func (m *MockVerifier) VerifyAadhaar(_ context.Context, aadhaar string) (pipeline.IdentityCheck, error) {
	if !exactDigits(aadhaar, 12) {
		return pipeline.IdentityCheck{Message: "Invalid Aadhaar format"}, nil
	}
	return pipeline.IdentityCheck{
		Verified: true,
		Masked:   "XXXX-XXXX-" + aadhaar[8:],
		Message:  "Aadhaar verified successfully",
	}, nil
}

func (m *MockVerifier) VerifyMobile(_ context.Context, mobile string) (pipeline.IdentityCheck, error) {
	if !exactDigits(mobile, 10) {
		return pipeline.IdentityCheck{Message: "Invalid mobile format"}, nil
	}
	return pipeline.IdentityCheck{
		Verified: true,
		Masked:   "XXXXXX" + mobile[6:],
		Message:  "Mobile verified successfully",
	}, nil
}

// MockBureau reports the same score for every applicant.
type MockBureau struct {
	Score int
}

func NewMockBureau() *MockBureau {
	return &MockBureau{Score: FixedCreditScore}
}

func (b *MockBureau) CreditScore(_ context.Context, _ string) (pipeline.CreditReport, error) {
	return pipeline.CreditReport{Score: b.Score, Rating: pipeline.CreditRating(b.Score)}, nil
}
