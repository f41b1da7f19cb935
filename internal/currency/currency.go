// Package currency converts and formats storefront prices using a static
// table of rates against USD.
package currency

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Base is the currency every rate is quoted against.
const Base = "USD"

var rates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("0.79"),
	"JPY": decimal.RequireFromString("149.5"),
	"CAD": decimal.RequireFromString("1.35"),
	"AUD": decimal.RequireFromString("1.52"),
	"CHF": decimal.RequireFromString("0.87"),
	"CNY": decimal.RequireFromString("7.24"),
}

type format struct {
	symbol   string
	decimals int32
}

var formats = map[string]format{
	"USD": {"$", 2},
	"EUR": {"€", 2},
	"GBP": {"£", 2},
	"JPY": {"¥", 0},
	"CAD": {"CA$", 2},
	"AUD": {"A$", 2},
	"CHF": {"CHF ", 2},
	"CNY": {"CN¥", 2},
}

// rate returns the USD rate for code. Unknown codes are treated as 1.
func rate(code string) decimal.Decimal {
	if r, ok := rates[strings.ToUpper(code)]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert moves amount from one currency to another through USD.
func Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	if strings.EqualFold(from, to) {
		return amount
	}
	return amount.Div(rate(from)).Mul(rate(to))
}

// Rate is the number of units of to bought by one unit of from.
func Rate(from, to string) decimal.Decimal {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1)
	}
	return rate(to).Div(rate(from))
}

// Available lists the supported currency codes in alphabetical order.
func Available() []string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

func Supported(code string) bool {
	_, ok := rates[strings.ToUpper(code)]
	return ok
}

// Format renders amount in the en-US style for code, e.g. "$1,234.50".
// Unknown codes are rendered with the code as prefix.
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	f, ok := formats[code]
	if !ok {
		f = format{symbol: code + " ", decimals: 2}
	}

	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(f.decimals)
	whole, frac, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(f.symbol)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if frac != "" {
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	return sb.String()
}
