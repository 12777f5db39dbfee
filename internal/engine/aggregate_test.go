package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMerchantKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Netflix", "netflix"},
		{"Netflix, Inc.", "netflix"},
		{"NETFLIX.COM", "netflix"},
		{"mailer.netflix.com", "netflix"},
		{"Dropbox LLC", "dropbox"},
		{"Spotify AB", "spotify ab"},
		{"Acme Company Ltd", "acme"},
		{"  Hulu  ", "hulu"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MerchantKey(tc.in), "input %q", tc.in)
	}
}

func candidateAt(id, merchant, amount string, freq Frequency, day int) *Candidate {
	c := &Candidate{
		SourceMessageID: id,
		Merchant:        merchant,
		Frequency:       freq,
		Category:        CategoryStreaming,
		Confidence:      ConfidenceHigh,
		ReceivedAt:      time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC),
	}
	if amount != "" {
		c.Amount = &Amount{Value: decimal.RequireFromString(amount), Currency: USD}
	}
	return c
}

func TestAggregatorMergesByMerchantKey(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	agg.Add(candidateAt("a", "Netflix", "15.99", FreqMonthly, 1))
	agg.Add(candidateAt("b", "Netflix, Inc.", "15.99", FreqMonthly, 15))

	entities := agg.Entities()
	require.Len(t, entities, 1)
	e := entities[0]
	require.Equal(t, "netflix", e.MerchantKey)
	require.Len(t, e.ChargeHistory, 2)
	require.Equal(t, "15.99", e.CurrentAmount.Value.StringFixed(2))
	require.Equal(t, FreqMonthly, e.Frequency)
	require.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), e.FirstSeenAt)
	require.Equal(t, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), e.LastSeenAt)
	require.False(t, e.PriceMismatch)
}

func TestAggregatorIdempotent(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	c := candidateAt("same-id", "Spotify", "9.99", FreqMonthly, 3)
	agg.Add(c)
	agg.Add(c)
	agg.Add(candidateAt("same-id", "Spotify", "9.99", FreqMonthly, 3))

	entities := agg.Entities()
	require.Len(t, entities, 1)
	require.Len(t, entities[0].ChargeHistory, 1)
}

func TestAggregatorOrderIndependent(t *testing.T) {
	t.Parallel()

	cands := []*Candidate{
		candidateAt("a", "Hulu", "7.99", FreqMonthly, 2),
		candidateAt("b", "Hulu", "", FreqUnknown, 10),
		candidateAt("c", "Hulu", "12.99", FreqMonthly, 20),
		candidateAt("d", "Netflix", "15.99", FreqMonthly, 5),
	}
	perms := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}

	var baseline []*Entity
	for _, perm := range perms {
		agg := NewAggregator(0)
		for _, i := range perm {
			agg.Add(cands[i])
		}
		got := agg.Entities()
		keys := map[string]bool{}
		for _, e := range got {
			require.False(t, keys[e.MerchantKey], "duplicate merchant key %q", e.MerchantKey)
			keys[e.MerchantKey] = true
		}
		if baseline == nil {
			baseline = got
			continue
		}
		require.Equal(t, baseline, got, "permutation %v", perm)
	}
}

func TestAggregatorLatestConfidentAmountWins(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	low := candidateAt("a", "Canva", "11.00", FreqMonthly, 20)
	low.Confidence = ConfidenceLow
	agg.Add(candidateAt("b", "Canva", "12.99", FreqMonthly, 5))
	agg.Add(low)

	e := agg.Entities()[0]
	require.Equal(t, "12.99", e.CurrentAmount.Value.StringFixed(2))
	require.Equal(t, ConfidenceHigh, e.Confidence)
}

func TestAggregatorFallsBackToLowConfidenceAmount(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	low := candidateAt("a", "Canva", "12.99", FreqMonthly, 5)
	low.Confidence = ConfidenceLow
	agg.Add(low)
	agg.Add(candidateAt("b", "Canva", "", FreqMonthly, 9))

	e := agg.Entities()[0]
	require.NotNil(t, e.CurrentAmount)
	require.Equal(t, "12.99", e.CurrentAmount.Value.StringFixed(2))
	require.Equal(t, ConfidenceLow, e.Confidence)
}

func TestAggregatorPriceMismatch(t *testing.T) {
	t.Parallel()

	t.Run("divergent amounts flag the entity", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(0)
		agg.Add(candidateAt("a", "Netflix", "9.99", FreqMonthly, 1))
		agg.Add(candidateAt("b", "Netflix", "15.99", FreqMonthly, 20))
		require.True(t, agg.Entities()[0].PriceMismatch)
	})

	t.Run("amounts inside tolerance do not", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(0)
		agg.Add(candidateAt("a", "Netflix", "9.99", FreqMonthly, 1))
		agg.Add(candidateAt("b", "Netflix", "10.15", FreqMonthly, 20))
		require.False(t, agg.Entities()[0].PriceMismatch)
	})

	t.Run("low confidence amounts are ignored", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(0)
		agg.Add(candidateAt("a", "Netflix", "9.99", FreqMonthly, 1))
		low := candidateAt("b", "Netflix", "99.99", FreqMonthly, 20)
		low.Confidence = ConfidenceLow
		agg.Add(low)
		require.False(t, agg.Entities()[0].PriceMismatch)
	})

	t.Run("currency disagreement always flags", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(0)
		agg.Add(candidateAt("a", "Netflix", "9.99", FreqMonthly, 1))
		eur := candidateAt("b", "Netflix", "9.99", FreqMonthly, 20)
		eur.Amount.Currency = EUR
		agg.Add(eur)
		require.True(t, agg.Entities()[0].PriceMismatch)
	})
}

func TestAggregatorLatestResolvedFrequencyWins(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	agg.Add(candidateAt("a", "Adobe", "54.99", FreqMonthly, 1))
	agg.Add(candidateAt("b", "Adobe", "599.88", FreqAnnual, 20))
	agg.Add(candidateAt("c", "Adobe", "", FreqUnknown, 25))

	require.Equal(t, FreqAnnual, agg.Entities()[0].Frequency)
}

func TestAggregatorRejectsUnusable(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(0)
	agg.Add(nil)
	agg.Add(&Candidate{SourceMessageID: "x", Merchant: ""})
	agg.Add(&Candidate{SourceMessageID: "", Merchant: "Netflix"})
	require.Empty(t, agg.Entities())
}
