package extraction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"loan-workers/internal/pipeline"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected map[string]interface{}
	}{
		{
			name: "full introduction",
			text: "Hi, my name is asha rao and my mobile is 9876543210. PAN abcde1234f, " +
				"aadhaar 1234 5678 9012. I need 5 lakhs for 3 years, salary 75,000",
			expected: map[string]interface{}{
				FieldCustomerName: "Asha Rao",
				FieldMobile:       "9876543210",
				FieldPAN:          "ABCDE1234F",
				FieldAadhaar:      "123456789012",
				FieldLoanAmount:   int64(500000),
				FieldTenure:       36,
				FieldIncome:       int64(75000),
			},
		},
		{
			name:     "fractional lakhs",
			text:     "loan of 2.5 lakh",
			expected: map[string]interface{}{FieldLoanAmount: int64(250000)},
		},
		{
			name:     "crore",
			text:     "I want 1.2 crore",
			expected: map[string]interface{}{FieldLoanAmount: int64(12000000)},
		},
		{
			name:     "plain rupee amount",
			text:     "Rs. 350000 over 24 months",
			expected: map[string]interface{}{FieldLoanAmount: int64(350000), FieldTenure: 24},
		},
		{
			name:     "salary figure is not the loan",
			text:     "my salary is 60000",
			expected: map[string]interface{}{FieldIncome: int64(60000)},
		},
		{
			name: "hyphenated aadhaar",
			text: "aadhaar 1234-5678-9012",
			expected: map[string]interface{}{
				FieldAadhaar: "123456789012",
			},
		},
		{
			name:     "months win over years",
			text:     "18 months, maybe 2 years",
			expected: map[string]interface{}{FieldTenure: 18},
		},
		{
			name:     "no name from filler",
			text:     "I am looking for a loan",
			expected: map[string]interface{}{},
		},
		{
			name:     "name capped at three words",
			text:     "this is ravi kumar singh verma",
			expected: map[string]interface{}{FieldCustomerName: "Ravi Kumar Singh"},
		},
		{
			name:     "nothing to find",
			text:     "   hello   ",
			expected: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_OverlaysAndReportsMissing(t *testing.T) {
	base := pipeline.Application{ID: "app-001", CustomerName: "Asha Rao", Income: 50000}

	got := Merge(base, "  mobile 9876543210, need 5 lakhs  ")

	assert.Equal(t, "mobile 9876543210, need 5 lakhs", got.Cleaned)
	assert.Equal(t, "app-001", got.Application.ID)
	assert.Equal(t, "Asha Rao", got.Application.CustomerName)
	assert.Equal(t, "9876543210", got.Application.Mobile)
	assert.Equal(t, int64(500000), got.Application.LoanAmount)
	assert.Equal(t, int64(50000), got.Application.Income)
	assert.Equal(t, []string{FieldPAN, FieldAadhaar, FieldTenure}, got.Missing)
	assert.Len(t, got.Fields, 2)
}

func TestMerge_NewerValuesReplaceOld(t *testing.T) {
	base := pipeline.Application{Income: 50000, Tenure: 12}

	got := Merge(base, "actually my income is 80,000 and tenure 2 years")

	assert.Equal(t, int64(80000), got.Application.Income)
	assert.Equal(t, 24, got.Application.Tenure)
}

func TestMissingFields(t *testing.T) {
	assert.Equal(t, RequiredFields, MissingFields(pipeline.Application{}))

	complete := pipeline.Application{
		CustomerName: "Asha Rao",
		Mobile:       "9876543210",
		PAN:          "ABCDE1234F",
		Aadhaar:      "123456789012",
		LoanAmount:   500000,
		Tenure:       36,
		Income:       75000,
	}
	assert.Empty(t, MissingFields(complete))
}
