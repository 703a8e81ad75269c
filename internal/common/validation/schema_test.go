package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestInput() map[string]interface{} {
	return map[string]interface{}{
		"applicationId": "app-001",
		"customerName":  "Asha Rao",
		"mobile":        "9876543210",
		"pan":           "ABCDE1234F",
		"aadhaar":       "1234 5678 9012",
		"loanAmount":    500000,
		"tenure":        36,
		"income":        75000,
	}
}

func TestValidateApplication(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m map[string]interface{})
		wantValid bool
		wantField string
		wantCode  string
	}{
		{
			name:      "valid application",
			mutate:    func(m map[string]interface{}) {},
			wantValid: true,
		},
		{
			name:      "lowercase pan accepted",
			mutate:    func(m map[string]interface{}) { m["pan"] = "abcde1234f" },
			wantValid: true,
		},
		{
			name:      "missing income",
			mutate:    func(m map[string]interface{}) { delete(m, "income") },
			wantField: "income",
			wantCode:  "REQUIRED_FIELD_MISSING",
		},
		{
			name:      "short mobile",
			mutate:    func(m map[string]interface{}) { m["mobile"] = "98765" },
			wantField: "mobile",
			wantCode:  "PATTERN_MISMATCH",
		},
		{
			name:      "malformed pan",
			mutate:    func(m map[string]interface{}) { m["pan"] = "1234ABCDE5" },
			wantField: "pan",
			wantCode:  "PATTERN_MISMATCH",
		},
		{
			name:      "amount as string",
			mutate:    func(m map[string]interface{}) { m["loanAmount"] = "5 lakhs" },
			wantField: "loanAmount",
			wantCode:  "INVALID_TYPE",
		},
		{
			name:      "zero tenure",
			mutate:    func(m map[string]interface{}) { m["tenure"] = 0 },
			wantField: "tenure",
			wantCode:  "MIN_VALUE_VIOLATION",
		},
		{
			name:      "empty name",
			mutate:    func(m map[string]interface{}) { m["customerName"] = "" },
			wantField: "customerName",
			wantCode:  "MIN_LENGTH_VIOLATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := createTestInput()
			tt.mutate(input)

			result, err := ValidateApplication(input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantValid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.wantField, result.Errors[0].Field)
			assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			assert.Contains(t, result.Messages()[0], tt.wantField+": ")
		})
	}
}

func TestValidateApplication_ReportsEveryProblem(t *testing.T) {
	result, err := ValidateApplication(map[string]interface{}{"mobile": "12"})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	fields := map[string]bool{}
	for _, e := range result.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"customerName", "pan", "aadhaar", "loanAmount", "tenure", "income", "mobile"} {
		assert.True(t, fields[f], f)
	}
}

func TestValidateJSON(t *testing.T) {
	schema := `{"type":"object","required":["status"],"properties":{"status":{"type":"string"}}}`

	ok, err := ValidateJSON(schema, []byte(`{"status":"SANCTIONED"}`))
	require.NoError(t, err)
	assert.True(t, ok.Valid)

	bad, err := ValidateJSON(schema, []byte(`{"status":1}`))
	require.NoError(t, err)
	assert.False(t, bad.Valid)

	_, err = ValidateJSON(`{"type": 12}`, []byte(`{}`))
	assert.Error(t, err)

	_, err = ValidateJSON(schema, []byte(`{not json`))
	assert.Error(t, err)
}
