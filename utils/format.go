package utils

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatViews renders a view count with digit grouping ("12,345").
func FormatViews(views int64) string {
	return printer.Sprintf("%d", views)
}

// FormatMoney renders an amount with two decimals and digit grouping.
func FormatMoney(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return printer.Sprintf("%.2f", f)
}
