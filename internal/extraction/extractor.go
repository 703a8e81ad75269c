// Package extraction pulls loan application fields out of free text.
package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loan-workers/internal/pipeline"
)

// Field names match the JSON names of pipeline.Application.
const (
	FieldCustomerName = "customerName"
	FieldMobile       = "mobile"
	FieldPAN          = "pan"
	FieldAadhaar      = "aadhaar"
	FieldLoanAmount   = "loanAmount"
	FieldTenure       = "tenure"
	FieldIncome       = "income"
)

const maxNameWords = 3

// RequiredFields lists what an application needs before evaluation, in
// the order a conversation would ask for them.
var RequiredFields = []string{
	FieldCustomerName,
	FieldMobile,
	FieldPAN,
	FieldAadhaar,
	FieldLoanAmount,
	FieldTenure,
	FieldIncome,
}

var (
	mobilePattern     = regexp.MustCompile(`\b(\d{10})\b`)
	panPattern        = regexp.MustCompile(`\b([A-Z]{5}[0-9]{4}[A-Z])\b`)
	aadhaarPattern    = regexp.MustCompile(`\b(\d{4}[\s-]?\d{4}[\s-]?\d{4})\b`)
	separatorPattern  = regexp.MustCompile(`[\s-]`)
	lakhPattern       = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:lakhs?|lacs?|l)\b`)
	crorePattern      = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:crores?|cr)\b`)
	plainAmount       = regexp.MustCompile(`(?i)(?:rs\.?\s*|₹\s*)?\b(\d{5,8})\b`)
	tenureMonths      = regexp.MustCompile(`(?i)(\d+)\s*(?:months?|mo)\b`)
	tenureYears       = regexp.MustCompile(`(?i)(\d+)\s*(?:years?|yrs?)\b`)
	incomePattern     = regexp.MustCompile(`(?i)(?:income|salary|earning)[^\d]*(\d+(?:,\d+)*)`)
	namePattern       = regexp.MustCompile(`(?i)(?:name is|i am|this is|i'm)\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)`)
	nameStopWords     = map[string]bool{
		"a": true, "an": true, "the": true, "and": true, "my": true, "i": true,
		"with": true, "from": true, "looking": true, "need": true, "want": true,
		"applying": true, "earning": true, "salary": true, "income": true,
		"pan": true, "aadhaar": true, "mobile": true, "phone": true,
		"interested": true, "working": true, "here": true, "not": true,
	}
)

// Extraction is the outcome of reading one message against an existing
// application.
type Extraction struct {
	Cleaned     string                 `json:"cleanedMessage"`
	Fields      map[string]interface{} `json:"extracted"`
	Application pipeline.Application   `json:"application"`
	Missing     []string               `json:"missing"`
}

// Extract returns every field it can find in text. Amounts are rupees,
// tenure is months.
func Extract(text string) map[string]interface{} {
	cleaned := strings.TrimSpace(text)
	fields := make(map[string]interface{})

	if m := mobilePattern.FindStringSubmatch(cleaned); m != nil {
		fields[FieldMobile] = m[1]
	}
	if m := panPattern.FindStringSubmatch(strings.ToUpper(cleaned)); m != nil {
		fields[FieldPAN] = m[1]
	}
	if m := aadhaarPattern.FindStringSubmatch(cleaned); m != nil {
		fields[FieldAadhaar] = separatorPattern.ReplaceAllString(m[1], "")
	}

	incomeSpan := incomePattern.FindStringSubmatchIndex(cleaned)
	if incomeSpan != nil {
		if v, ok := parseInt(cleaned[incomeSpan[2]:incomeSpan[3]]); ok {
			fields[FieldIncome] = v
		}
	}

	if v, ok := loanAmount(cleaned, incomeSpan); ok {
		fields[FieldLoanAmount] = v
	}

	if m := tenureMonths.FindStringSubmatch(cleaned); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			fields[FieldTenure] = v
		}
	} else if m := tenureYears.FindStringSubmatch(cleaned); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			fields[FieldTenure] = v * 12
		}
	}

	if name := customerName(cleaned); name != "" {
		fields[FieldCustomerName] = name
	}

	return fields
}

// Merge extracts fields from text and overlays them on app. Fields already
// set on app are replaced by newer values from the text.
func Merge(app pipeline.Application, text string) Extraction {
	fields := Extract(text)

	for k, v := range fields {
		switch k {
		case FieldCustomerName:
			app.CustomerName = v.(string)
		case FieldMobile:
			app.Mobile = v.(string)
		case FieldPAN:
			app.PAN = v.(string)
		case FieldAadhaar:
			app.Aadhaar = v.(string)
		case FieldLoanAmount:
			app.LoanAmount = v.(int64)
		case FieldTenure:
			app.Tenure = v.(int)
		case FieldIncome:
			app.Income = v.(int64)
		}
	}

	return Extraction{
		Cleaned:     strings.TrimSpace(text),
		Fields:      fields,
		Application: app,
		Missing:     MissingFields(app),
	}
}

// MissingFields lists the required fields app does not have yet.
func MissingFields(app pipeline.Application) []string {
	present := map[string]bool{
		FieldCustomerName: strings.TrimSpace(app.CustomerName) != "",
		FieldMobile:       app.Mobile != "",
		FieldPAN:          app.PAN != "",
		FieldAadhaar:      app.Aadhaar != "",
		FieldLoanAmount:   app.LoanAmount > 0,
		FieldTenure:       app.Tenure > 0,
		FieldIncome:       app.Income > 0,
	}
	missing := []string{}
	for _, f := range RequiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func loanAmount(text string, incomeSpan []int) (int64, bool) {
	if m := crorePattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseScaled(m[1], 10000000); ok {
			return v, true
		}
	}
	if m := lakhPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseScaled(m[1], 100000); ok {
			return v, true
		}
	}
	for _, idx := range plainAmount.FindAllStringSubmatchIndex(text, -1) {
		// the figure after "salary" is income, not the loan
		if incomeSpan != nil && idx[2] >= incomeSpan[2] && idx[3] <= incomeSpan[3] {
			continue
		}
		if v, ok := parseInt(text[idx[2]:idx[3]]); ok {
			return v, true
		}
	}
	return 0, false
}

func customerName(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var words []string
	for _, w := range strings.Fields(m[1]) {
		if nameStopWords[strings.ToLower(w)] || len(words) == maxNameWords {
			break
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	return v, err == nil
}

func parseScaled(s string, unit float64) (int64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(v * unit)), true
}
