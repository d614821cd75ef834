package processors

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed display locale: narrow no-break space between thousands, comma before decimals.
const (
	ThousandsSeparator = "\u202f"
	DecimalSeparator   = ","
	// Placeholder is shown for a group that has no contributing records.
	Placeholder = "—"
)

// Decimal places per metric.
const (
	TNDChartDecimals = 0
	InvoiceDecimals  = 3
	SpreadDecimals   = 2
	RateDecimals     = 4
)

// FormatNumber renders v with a fixed number of decimals in the display locale.
func FormatNumber(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if decimals < 0 {
		decimals = 0
	}
	fixed := decimal.NewFromFloat(v).StringFixed(int32(decimals))

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if negative {
		b.WriteString("-")
	}
	b.WriteString(groupThousands(intPart))
	if decimals > 0 {
		b.WriteString(DecimalSeparator)
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(ThousandsSeparator)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPercent renders a percentage with the spread precision.
func FormatPercent(v float64) string {
	return FormatNumber(v, SpreadDecimals) + ThousandsSeparator + "%"
}

// FormatCell renders v, or the placeholder when the group had no records.
func FormatCell(v float64, count, decimals int) string {
	if count == 0 {
		return Placeholder
	}
	return FormatNumber(v, decimals)
}

// FormatPercentCell is FormatCell for percentages.
func FormatPercentCell(v float64, count int) string {
	if count == 0 {
		return Placeholder
	}
	return FormatPercent(v)
}

// Ratio returns num/den*100, or 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}
