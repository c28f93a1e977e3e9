// Package format renders market values for display.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NA is shown for values the upstream did not provide.
const NA = "N/A"

var symbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"inr": "₹",
	"btc": "₿",
}

var compactUnits = []struct {
	size   decimal.Decimal
	suffix string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// Formatter formats prices in one quote currency and locale.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// New returns a Formatter for the given locale and quote currency code.
// Unknown currencies are prefixed with their upper-case code.
func New(tag language.Tag, currency string) *Formatter {
	symbol, ok := symbols[strings.ToLower(currency)]
	if !ok {
		symbol = strings.ToUpper(currency) + " "
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}
}

// Default formats US dollars in English.
func Default() *Formatter {
	return New(language.English, "usd")
}

// Currency formats v with grouping and two decimals, or more for prices
// below one unit.
func (f *Formatter) Currency(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return f.CurrencyScale(v.Decimal, priceScale(v.Decimal))
}

// CurrencyScale formats d with the given number of decimals.
func (f *Formatter) CurrencyScale(d decimal.Decimal, decimals int) string {
	d = d.Round(int32(decimals))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + f.symbol + f.printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(decimals)))
}

// Compact formats large amounts with a T/B/M/K suffix, e.g. "$1.23T".
func (f *Formatter) Compact(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	abs := v.Decimal.Abs()
	for _, u := range compactUnits {
		if abs.GreaterThanOrEqual(u.size) {
			sign := ""
			if v.Decimal.IsNegative() {
				sign = "-"
			}
			return sign + f.symbol + abs.Div(u.size).StringFixed(2) + u.suffix
		}
	}
	return f.CurrencyScale(v.Decimal, 2)
}

// Percent formats a percentage with an explicit sign, e.g. "+2.35%".
func Percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	s := v.Decimal.StringFixed(2)
	if !v.Decimal.Round(2).IsNegative() {
		s = "+" + s
	}
	return s + "%"
}

// Direction returns 1 for a rise, -1 for a fall and 0 when flat or unknown.
func Direction(v decimal.NullDecimal) int {
	if !v.Valid {
		return 0
	}
	return v.Decimal.Sign()
}

// Clock formats t as a 12-hour wall clock time, e.g. "03:04:05 PM".
func Clock(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.Format("03:04:05 PM")
}

// Ago formats the time elapsed since t at a coarse granularity.
func Ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return strconv.Itoa(int(d/time.Second)) + "s ago"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	default:
		return strconv.Itoa(int(d/time.Hour)) + "h ago"
	}
}

func priceScale(d decimal.Decimal) int {
	abs := d.Abs()
	switch {
	case abs.IsZero() || abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return 2
	case abs.GreaterThanOrEqual(decimal.New(1, -2)):
		return 4
	default:
		return 8
	}
}
