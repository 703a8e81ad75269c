package evaluators

import (
	"context"
	"strings"

	"loan-workers/internal/pipeline"
)

const kycConfidence = 98

var panHolderTypes = map[byte]string{
	'P': "Individual",
	'C': "Company",
	'H': "HUF",
	'A': "AOP",
	'B': "BOI",
	'G': "Government",
	'J': "Artificial Juridical Person",
	'L': "Local Authority",
	'F': "Firm",
	'T': "Trust",
}

// PANHolderType maps the trailing letter of a normalised PAN to a holder
// category.
func PANHolderType(pan string) string {
	upper := strings.ToUpper(pan)
	if upper == "" {
		return "Unknown"
	}
	if t, ok := panHolderTypes[upper[len(upper)-1]]; ok {
		return t
	}
	return "Unknown"
}

// MaskAadhaar keeps the last four digits of a cleaned 12 digit number.
func MaskAadhaar(aadhaar string) string {
	return "XXXX-XXXX-" + aadhaar[len(aadhaar)-4:]
}

// KYC checks the format of the identity documents and contact number.
type KYC struct {
	identity
}

func NewKYC() *KYC {
	return &KYC{identity{KYCID, "KYC Verifier", "kyc_verification"}}
}

func (k *KYC) Evaluate(_ context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	score := 100
	var issues []string
	detail := map[string]interface{}{}

	switch {
	case app.PAN == "":
		score -= 40
		issues = append(issues, "PAN number not provided")
		detail["pan_verified"] = false
	case !pipeline.ValidPAN(app.PAN):
		score -= 40
		issues = append(issues, "Invalid PAN format: "+app.PAN)
		detail["pan_verified"] = false
	default:
		normalized := strings.ToUpper(app.PAN)
		detail["pan_verified"] = true
		detail["pan_normalized"] = normalized
		detail["pan_type"] = PANHolderType(normalized)
	}

	aadhaar := stripSeparators(app.Aadhaar)
	switch {
	case aadhaar == "":
		score -= 40
		issues = append(issues, "Aadhaar number not provided")
		detail["aadhaar_verified"] = false
	case !allDigits(aadhaar) || len(aadhaar) != 12:
		score -= 40
		issues = append(issues, "Invalid Aadhaar format (must be 12 digits)")
		detail["aadhaar_verified"] = false
	default:
		detail["aadhaar_verified"] = true
		detail["aadhaar_masked"] = MaskAadhaar(aadhaar)
	}

	mobile := stripSeparators(app.Mobile)
	if allDigits(mobile) && len(mobile) == 10 {
		detail["phone_verified"] = true
	} else {
		score -= 20
		issues = append(issues, "Invalid phone number format")
		detail["phone_verified"] = false
	}

	return k.verdict(score, kycConfidence, issues, "KYC verification successful", detail)
}
