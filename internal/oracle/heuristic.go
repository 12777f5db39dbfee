package oracle

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// HeuristicProvider is an offline, deterministic stand-in for a real
// model. It keeps the pipeline fully functional with no API key and is
// the default provider.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

var (
	heuristicAmountRe = regexp.MustCompile(`([$£€])\s*(\d+(?:\.\d{1,2})?)`)
	heuristicBrandRe  = regexp.MustCompile(`\b(?i:from|your|to)\s+([A-Z][A-Za-z0-9]{2,})\b`)
)

func (h *HeuristicProvider) Extract(ctx context.Context, raw string) (Extraction, error) {
	var out Extraction

	if m := heuristicAmountRe.FindStringSubmatch(raw); m != nil {
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			out.Amount = f
			out.Currency = symbolCurrency(m[1])
		}
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "trial"):
		out.Frequency = "trial"
	case strings.Contains(lower, "month"):
		out.Frequency = "monthly"
	case strings.Contains(lower, "year") || strings.Contains(lower, "annual"):
		out.Frequency = "annual"
	case strings.Contains(lower, "week"):
		out.Frequency = "weekly"
	default:
		out.Frequency = "unknown"
	}

	// Merchant hint: a capitalized brandish token after "from"/"your".
	if m := heuristicBrandRe.FindStringSubmatch(raw); m != nil {
		out.Merchant = m[1]
	}
	return out, nil
}

func symbolCurrency(sym string) string {
	switch sym {
	case "£":
		return "GBP"
	case "€":
		return "EUR"
	default:
		return "USD"
	}
}
