package engine

import "strings"

// Frequency is a billing cadence.
type Frequency string

const (
	FreqMonthly   Frequency = "monthly"
	FreqAnnual    Frequency = "annual"
	FreqQuarterly Frequency = "quarterly"
	FreqWeekly    Frequency = "weekly"
	FreqDaily     Frequency = "daily"
	FreqTrial     Frequency = "trial"
	FreqUnknown   Frequency = "unknown"
)

var trialCues = []string{"free trial", "trial period", "trial ends", "trial will end", "trial expir"}

// Explicit "per X" phrasing outranks a generic word; cadences are
// checked in a fixed order so classification is deterministic.
var cadenceCues = []struct {
	freq     Frequency
	explicit []string
	generic  []string
}{
	{FreqMonthly, []string{"per month", "/month", "/mo", "each month", "every month", "month-to-month"}, []string{"monthly"}},
	{FreqAnnual, []string{"per year", "/year", "/yr", "each year", "every year", "12-month"}, []string{"annual", "yearly"}},
	{FreqQuarterly, []string{"per quarter", "every quarter", "every 3 months", "3-month"}, []string{"quarterly"}},
	{FreqWeekly, []string{"per week", "/week", "/wk", "each week", "every week"}, []string{"weekly"}},
	{FreqDaily, []string{"per day", "/day", "each day", "every day"}, []string{"daily"}},
}

// ClassifyFrequency maps the matched text window to a cadence. Trial
// language overrides any cadence cue: a trial is not billed yet.
func ClassifyFrequency(text string) Frequency {
	lower := strings.ToLower(text)
	for _, cue := range trialCues {
		if strings.Contains(lower, cue) {
			return FreqTrial
		}
	}
	for _, c := range cadenceCues {
		for _, cue := range c.explicit {
			if strings.Contains(lower, cue) {
				return c.freq
			}
		}
	}
	for _, c := range cadenceCues {
		for _, cue := range c.generic {
			if strings.Contains(lower, cue) {
				return c.freq
			}
		}
	}
	return FreqUnknown
}

// ParseFrequency validates a free-text cadence name from the oracle
// into the closed set. Anything unrecognized is unknown.
func ParseFrequency(s string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case FreqMonthly:
		return FreqMonthly
	case FreqAnnual:
		return FreqAnnual
	case FreqQuarterly:
		return FreqQuarterly
	case FreqWeekly:
		return FreqWeekly
	case FreqDaily:
		return FreqDaily
	case FreqTrial:
		return FreqTrial
	default:
		return FreqUnknown
	}
}
