package engine

import (
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// DetectorConfig tunes the anomaly thresholds.
type DetectorConfig struct {
	UnusedAfter        time.Duration // no charge email for this long => unused
	TrialHorizon       time.Duration // trial ending within this window => trial_ending
	DefaultTrialLength time.Duration // estimate when the email names no end date
	PriceTolerance     float64       // relative amount difference treated as "same price"
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		UnusedAfter:        60 * 24 * time.Hour,
		TrialHorizon:       7 * 24 * time.Hour,
		DefaultTrialLength: 14 * 24 * time.Hour,
		PriceTolerance:     defaultPriceTolerance,
	}
}

// Detector annotates aggregated entities with a terminal status. It
// only ever writes Status, IsTrial, TrialEndsAt and TrialEndEstimated;
// financial fields stay untouched.
type Detector struct {
	cfg DetectorConfig
	now time.Time
}

func NewDetector(cfg DetectorConfig, now time.Time) *Detector {
	if cfg.UnusedAfter <= 0 {
		cfg.UnusedAfter = 60 * 24 * time.Hour
	}
	if cfg.TrialHorizon <= 0 {
		cfg.TrialHorizon = 7 * 24 * time.Hour
	}
	if cfg.DefaultTrialLength <= 0 {
		cfg.DefaultTrialLength = 14 * 24 * time.Hour
	}
	if cfg.PriceTolerance <= 0 {
		cfg.PriceTolerance = defaultPriceTolerance
	}
	return &Detector{cfg: cfg, now: now}
}

// Annotate applies the status precedence
// duplicate_suspect > trial_ending > unused > active.
func (d *Detector) Annotate(entities []*Entity) {
	suspects := d.duplicateSuspects(entities)
	for i, e := range entities {
		switch {
		case suspects[i]:
			e.Status = StatusDuplicateSuspect
		case d.trialEnding(e):
			e.Status = StatusTrialEnding
		case d.unused(e):
			e.Status = StatusUnused
		default:
			e.Status = StatusActive
		}
	}
}

func (d *Detector) unused(e *Entity) bool {
	return !e.IsTrial && d.now.Sub(e.LastSeenAt) > d.cfg.UnusedAfter
}

func (d *Detector) trialEnding(e *Entity) bool {
	if !e.IsTrial {
		return false
	}
	if e.TrialEndsAt == nil {
		// No explicit date in the email: estimate from first sighting
		// and say so, the user messaging differs for estimates.
		est := e.FirstSeenAt.Add(d.cfg.DefaultTrialLength)
		e.TrialEndsAt = &est
		e.TrialEndEstimated = true
	}
	until := e.TrialEndsAt.Sub(d.now)
	return until <= d.cfg.TrialHorizon
}

// duplicateSuspects flags entities whose merchant-key-level price
// mismatch fired, plus pairs of distinct entities that look like the
// same service billed twice: near-identical merchant keys, or matching
// category+frequency with amounts inside tolerance observed within one
// billing window. A heuristic signal only; nothing is merged.
func (d *Detector) duplicateSuspects(entities []*Entity) []bool {
	out := make([]bool, len(entities))
	for i, e := range entities {
		out[i] = e.PriceMismatch
	}
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			if d.looksDuplicated(entities[i], entities[j]) {
				out[i], out[j] = true, true
			}
		}
	}
	return out
}

func (d *Detector) looksDuplicated(a, b *Entity) bool {
	if a.CurrentAmount == nil || b.CurrentAmount == nil {
		return false
	}
	if !amountsClose(a.CurrentAmount, b.CurrentAmount, d.cfg.PriceTolerance) {
		return false
	}
	if keysNearIdentical(a.MerchantKey, b.MerchantKey) {
		return true
	}
	return a.Category == b.Category &&
		a.Frequency == b.Frequency &&
		a.Frequency != FreqUnknown &&
		withinBillingWindow(a, b)
}

func amountsClose(a, b *Amount, tolerance float64) bool {
	if a.Currency != b.Currency {
		return false
	}
	base := decimal.Min(a.Value, b.Value)
	if base.IsZero() {
		return a.Value.Equal(b.Value)
	}
	diff := a.Value.Sub(b.Value).Abs().Div(base)
	return !diff.GreaterThan(decimal.NewFromFloat(tolerance))
}

// keysNearIdentical catches spelling drift between keys that survived
// normalization ("netflix" vs "netflix us").
func keysNearIdentical(a, b string) bool {
	if a == b {
		return false // equal keys were already merged upstream
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return false
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(dist)/float64(longest) < 0.4
}

func billingWindow(f Frequency) time.Duration {
	switch f {
	case FreqAnnual:
		return 366 * 24 * time.Hour
	case FreqQuarterly:
		return 92 * 24 * time.Hour
	case FreqWeekly:
		return 8 * 24 * time.Hour
	case FreqDaily:
		return 2 * 24 * time.Hour
	default:
		return 32 * 24 * time.Hour
	}
}

func withinBillingWindow(a, b *Entity) bool {
	w := billingWindow(a.Frequency)
	gap := a.LastSeenAt.Sub(b.LastSeenAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= w
}
