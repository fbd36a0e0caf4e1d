package billing

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol is appended to formatted amounts.
const CurrencySymbol = "đ"

var printer = message.NewPrinter(language.Vietnamese)

// FormatAmount renders an amount the way receipts and dashboards show it: "1.500.000 đ".
func FormatAmount(amount float64) string {
	return printer.Sprintf("%d %s", int64(math.Round(amount)), CurrencySymbol)
}
