package pipeline

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatAmount groups thousands with commas: 5000000 -> "5,000,000".
func FormatAmount(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// FormatRupees is FormatAmount with two decimals.
func FormatRupees(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", v)
}
