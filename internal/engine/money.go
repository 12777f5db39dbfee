package engine

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Supported currencies. The engine never invents others.
const (
	USD = "USD"
	GBP = "GBP"
	EUR = "EUR"
)

// Amount is a canonical monetary value.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

func (a Amount) String() string {
	return CurrencySymbol(a.Currency) + a.Value.StringFixed(2)
}

func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Value.Equal(b.Value)
}

// CurrencySymbol maps a supported currency code to its display symbol.
func CurrencySymbol(code string) string {
	switch code {
	case GBP:
		return "£"
	case EUR:
		return "€"
	default:
		return "$"
	}
}

var (
	numPattern = `\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:[.,]\d+)?`

	symbolFirstRe = regexp.MustCompile(`([$£€])\s*(` + numPattern + `)`)
	symbolAfterRe = regexp.MustCompile(`(` + numPattern + `)\s*([$£€])`)
	isoCodeRe     = regexp.MustCompile(`(?i)(` + numPattern + `)\s*(USD|GBP|EUR|dollars|pounds|euros)\b`)
)

// ParseAmount scans a text fragment for a monetary expression and
// returns its canonical form, or nil when no amount is present. It
// never errors: malformed-but-plausible input degrades to a
// low-confidence parse, only a complete absence of a pattern yields
// nil.
func ParseAmount(text string) (*Amount, Confidence) {
	if m := symbolFirstRe.FindStringSubmatch(text); m != nil {
		return buildAmount(m[2], symbolToCurrency(m[1]))
	}
	if m := symbolAfterRe.FindStringSubmatch(text); m != nil {
		return buildAmount(m[1], symbolToCurrency(m[2]))
	}
	if m := isoCodeRe.FindStringSubmatch(text); m != nil {
		return buildAmount(m[1], wordToCurrency(m[2]))
	}
	return nil, ConfidenceLow
}

// buildAmount normalizes the numeric portion. GBP/USD use "." as the
// decimal separator; a decimal comma is never assumed without a cue,
// so "9,99" parses as 9.99 only at low confidence while "1,234" is
// read as a thousands group.
func buildAmount(num, currency string) (*Amount, Confidence) {
	conf := ConfidenceHigh
	hasComma := strings.Contains(num, ",")
	hasDot := strings.Contains(num, ".")
	switch {
	case hasComma && hasDot:
		num = strings.ReplaceAll(num, ",", "")
	case hasDot:
		// "9.999" could be a European thousands group; keep the
		// dot-decimal reading but do not claim certainty.
		if i := strings.LastIndex(num, "."); len(num)-i-1 == 3 {
			conf = ConfidenceLow
		}
	case hasComma:
		if i := strings.LastIndex(num, ","); len(num)-i-1 == 2 {
			// Likely a decimal comma, but no locale cue to prove it.
			num = num[:i] + "." + num[i+1:]
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
		conf = ConfidenceLow
	}
	v, err := decimal.NewFromString(num)
	if err != nil {
		return nil, ConfidenceLow
	}
	return &Amount{Value: v, Currency: currency}, conf
}

func symbolToCurrency(sym string) string {
	switch sym {
	case "£":
		return GBP
	case "€":
		return EUR
	default:
		return USD
	}
}

func wordToCurrency(w string) string {
	switch strings.ToLower(w) {
	case "gbp", "pounds":
		return GBP
	case "eur", "euros":
		return EUR
	default:
		return USD
	}
}

var (
	weeksPerMonth = decimal.NewFromFloat(4.33)
	daysPerMonth  = decimal.NewFromFloat(30.42)
	twelve        = decimal.NewFromInt(12)
	three         = decimal.NewFromInt(3)
)

// MonthlyCost normalizes an amount to a monthly cadence. Trials are
// not billed yet and contribute nothing; an unknown cadence is assumed
// monthly, matching how the signal is presented to the user.
func MonthlyCost(a Amount, f Frequency) decimal.Decimal {
	switch f {
	case FreqAnnual:
		return a.Value.Div(twelve)
	case FreqQuarterly:
		return a.Value.Div(three)
	case FreqWeekly:
		return a.Value.Mul(weeksPerMonth)
	case FreqDaily:
		return a.Value.Mul(daysPerMonth)
	case FreqTrial:
		return decimal.Zero
	default:
		return a.Value
	}
}
