package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var anomalyNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func entityAt(key string, amount string, freq Frequency, lastSeen time.Time) *Entity {
	e := &Entity{
		ServiceName: key,
		MerchantKey: MerchantKey(key),
		Category:    CategoryStreaming,
		Frequency:   freq,
		Confidence:  ConfidenceHigh,
		FirstSeenAt: lastSeen.AddDate(0, -3, 0),
		LastSeenAt:  lastSeen,
		Status:      StatusActive,
	}
	if amount != "" {
		e.CurrentAmount = &Amount{Value: decimal.RequireFromString(amount), Currency: USD}
	}
	e.IsTrial = freq == FreqTrial
	return e
}

func TestAnnotateUnused(t *testing.T) {
	t.Parallel()

	stale := entityAt("oldservice", "9.99", FreqMonthly, anomalyNow.AddDate(0, 0, -90))
	fresh := entityAt("newservice", "4.99", FreqAnnual, anomalyNow.AddDate(0, 0, -10))

	NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{stale, fresh})
	require.Equal(t, StatusUnused, stale.Status)
	require.Equal(t, StatusActive, fresh.Status)
}

func TestAnnotateTrialEnding(t *testing.T) {
	t.Parallel()

	t.Run("explicit end date inside horizon", func(t *testing.T) {
		t.Parallel()
		e := entityAt("fitnessapp", "", FreqTrial, anomalyNow.AddDate(0, 0, -2))
		end := anomalyNow.AddDate(0, 0, 3)
		e.TrialEndsAt = &end

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
		require.Equal(t, StatusTrialEnding, e.Status)
		require.False(t, e.TrialEndEstimated)
	})

	t.Run("missing end date is estimated from first sighting", func(t *testing.T) {
		t.Parallel()
		e := entityAt("fitnessapp", "", FreqTrial, anomalyNow)
		e.FirstSeenAt = anomalyNow.AddDate(0, 0, -10)

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
		require.Equal(t, StatusTrialEnding, e.Status)
		require.True(t, e.TrialEndEstimated)
		require.NotNil(t, e.TrialEndsAt)
		require.Equal(t, e.FirstSeenAt.AddDate(0, 0, 14), *e.TrialEndsAt)
	})

	t.Run("fresh trial outside horizon stays active", func(t *testing.T) {
		t.Parallel()
		e := entityAt("fitnessapp", "", FreqTrial, anomalyNow)
		e.FirstSeenAt = anomalyNow.AddDate(0, 0, -1)

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
		require.Equal(t, StatusActive, e.Status)
	})

	t.Run("a stale trial is never unused", func(t *testing.T) {
		t.Parallel()
		e := entityAt("fitnessapp", "", FreqTrial, anomalyNow.AddDate(0, 0, -90))
		end := anomalyNow.AddDate(0, 1, 0)
		e.TrialEndsAt = &end

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
		require.Equal(t, StatusActive, e.Status)
	})
}

func TestAnnotateDuplicateSuspects(t *testing.T) {
	t.Parallel()

	t.Run("price mismatch carries over", func(t *testing.T) {
		t.Parallel()
		e := entityAt("netflix", "15.99", FreqMonthly, anomalyNow.AddDate(0, 0, -5))
		e.PriceMismatch = true

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
		require.Equal(t, StatusDuplicateSuspect, e.Status)
	})

	t.Run("near identical keys with matching amounts", func(t *testing.T) {
		t.Parallel()
		a := entityAt("netflix", "15.99", FreqMonthly, anomalyNow.AddDate(0, 0, -5))
		b := entityAt("netflix us", "15.99", FreqMonthly, anomalyNow.AddDate(0, 0, -8))

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{a, b})
		require.Equal(t, StatusDuplicateSuspect, a.Status)
		require.Equal(t, StatusDuplicateSuspect, b.Status)
	})

	t.Run("same category and cadence within one billing window", func(t *testing.T) {
		t.Parallel()
		a := entityAt("screenflix", "12.99", FreqMonthly, anomalyNow.AddDate(0, 0, -5))
		b := entityAt("flixscreen", "12.99", FreqMonthly, anomalyNow.AddDate(0, 0, -20))

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{a, b})
		require.Equal(t, StatusDuplicateSuspect, a.Status)
		require.Equal(t, StatusDuplicateSuspect, b.Status)
	})

	t.Run("different amounts stay independent", func(t *testing.T) {
		t.Parallel()
		a := entityAt("hulu", "7.99", FreqMonthly, anomalyNow.AddDate(0, 0, -5))
		b := entityAt("huluplus", "17.99", FreqMonthly, anomalyNow.AddDate(0, 0, -6))

		NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{a, b})
		require.Equal(t, StatusActive, a.Status)
		require.Equal(t, StatusActive, b.Status)
	})
}

func TestAnnotatePrecedence(t *testing.T) {
	t.Parallel()

	// One entity qualifies for everything at once; duplicate_suspect
	// outranks trial_ending outranks unused.
	e := entityAt("fitnessapp", "9.99", FreqTrial, anomalyNow.AddDate(0, 0, -90))
	e.FirstSeenAt = anomalyNow.AddDate(0, 0, -100)
	e.PriceMismatch = true

	NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
	require.Equal(t, StatusDuplicateSuspect, e.Status)

	e.PriceMismatch = false
	e.Status = StatusActive
	NewDetector(DefaultDetectorConfig(), anomalyNow).Annotate([]*Entity{e})
	require.Equal(t, StatusTrialEnding, e.Status)
}

func TestKeysNearIdentical(t *testing.T) {
	t.Parallel()

	require.True(t, keysNearIdentical("netflix", "netflix us"))
	require.False(t, keysNearIdentical("netflix", "netflix"))
	require.False(t, keysNearIdentical("netflix", "spotify"))
	require.False(t, keysNearIdentical("", ""))
}
