package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyFrequency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want Frequency
	}{
		{"per month", "Billed at $9.99 per month", FreqMonthly},
		{"slash mo", "$9.99/mo after the intro period", FreqMonthly},
		{"monthly word", "Your monthly subscription renewed", FreqMonthly},
		{"per year", "£79 per year, cancel anytime", FreqAnnual},
		{"yearly word", "Yearly plan confirmation", FreqAnnual},
		{"quarterly", "We bill quarterly", FreqQuarterly},
		{"every three months", "Charged every 3 months", FreqQuarterly},
		{"weekly", "Delivered weekly for $10", FreqWeekly},
		{"daily", "$1 per day", FreqDaily},
		{"trial beats cadence", "Your free trial converts to $9.99 per month", FreqTrial},
		{"trial ends", "Your trial ends soon", FreqTrial},
		{"nothing", "Thanks for your order", FreqUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ClassifyFrequency(tc.in))
		})
	}
}

func TestClassifyFrequencyExplicitBeatsGeneric(t *testing.T) {
	t.Parallel()

	// "annual" appears as a generic word but the explicit phrasing
	// names a monthly cadence.
	got := ClassifyFrequency("Annual members pay $4.99 per month")
	require.Equal(t, FreqMonthly, got)
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	require.Equal(t, FreqMonthly, ParseFrequency("Monthly"))
	require.Equal(t, FreqAnnual, ParseFrequency(" annual "))
	require.Equal(t, FreqTrial, ParseFrequency("trial"))
	require.Equal(t, FreqUnknown, ParseFrequency("biweekly"))
	require.Equal(t, FreqUnknown, ParseFrequency(""))
}
