package engine

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultPriceTolerance = 0.05

var corpSuffixes = map[string]struct{}{
	"inc": {}, "llc": {}, "ltd": {}, "co": {}, "corp": {},
	"company": {}, "limited": {},
}

// MerchantKey normalizes a merchant name into the identity string used
// for deduplication: lower-cased, domain TLD stripped, corporate
// suffixes dropped, punctuation collapsed. Merchant identity, not
// price, decides what merges.
func MerchantKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	if strings.Contains(s, ".") && !strings.ContainsRune(s, ' ') {
		s = merchantFromDomain(s)
		s = strings.ToLower(s)
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		if _, ok := corpSuffixes[last]; !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// Aggregator folds candidates into one entity per merchant key. It is
// single-writer: callers funnel concurrent extraction results through
// one goroutine. The derived entity fields depend only on the set of
// accepted candidates, never on arrival order.
type Aggregator struct {
	accs           map[string]*entityAcc
	priceTolerance decimal.Decimal
}

type entityAcc struct {
	key string
	obs map[string]Candidate // by source message ID
}

func NewAggregator(priceTolerance float64) *Aggregator {
	if priceTolerance <= 0 {
		priceTolerance = defaultPriceTolerance
	}
	return &Aggregator{
		accs:           make(map[string]*entityAcc),
		priceTolerance: decimal.NewFromFloat(priceTolerance),
	}
}

// Add folds one candidate in. Re-processing a message ID already seen
// for the same merchant key is a no-op, which makes the whole pipeline
// idempotent under retried delivery.
func (a *Aggregator) Add(c *Candidate) {
	if c == nil {
		return
	}
	key := MerchantKey(c.Merchant)
	if key == "" || c.SourceMessageID == "" {
		return
	}
	acc, ok := a.accs[key]
	if !ok {
		acc = &entityAcc{key: key, obs: make(map[string]Candidate)}
		a.accs[key] = acc
	}
	if _, dup := acc.obs[c.SourceMessageID]; dup {
		return
	}
	acc.obs[c.SourceMessageID] = *c
}

// Entities materializes the aggregated view, sorted by merchant key so
// output is stable across runs.
func (a *Aggregator) Entities() []*Entity {
	keys := make([]string, 0, len(a.accs))
	for k := range a.accs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.accs[k].materialize(a.priceTolerance))
	}
	return out
}

func (acc *entityAcc) materialize(tolerance decimal.Decimal) *Entity {
	obs := make([]Candidate, 0, len(acc.obs))
	for _, c := range acc.obs {
		obs = append(obs, c)
	}
	// Charge history is ordered by received time regardless of arrival
	// order; message ID breaks ties deterministically.
	sort.Slice(obs, func(i, j int) bool {
		if !obs[i].ReceivedAt.Equal(obs[j].ReceivedAt) {
			return obs[i].ReceivedAt.Before(obs[j].ReceivedAt)
		}
		return obs[i].SourceMessageID < obs[j].SourceMessageID
	})

	e := &Entity{
		ServiceName: obs[0].Merchant,
		MerchantKey: acc.key,
		Category:    obs[0].Category,
		Frequency:   FreqUnknown,
		Confidence:  ConfidenceLow,
		FirstSeenAt: obs[0].ReceivedAt,
		LastSeenAt:  obs[len(obs)-1].ReceivedAt,
		Status:      StatusActive,
	}
	for _, c := range obs {
		e.ChargeHistory = append(e.ChargeHistory, Charge{
			ReceivedAt: c.ReceivedAt,
			Amount:     c.Amount,
			Confidence: c.Confidence,
			MessageID:  c.SourceMessageID,
		})
		if c.Category != CategoryOther {
			e.Category = c.Category
		}
	}

	// Most recent confident amount wins; fall back to the most recent
	// amount of any confidence rather than dropping the field.
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].Amount != nil && obs[i].Confidence != ConfidenceLow {
			e.CurrentAmount = obs[i].Amount
			e.Confidence = obs[i].Confidence
			break
		}
	}
	if e.CurrentAmount == nil {
		for i := len(obs) - 1; i >= 0; i-- {
			if obs[i].Amount != nil {
				e.CurrentAmount = obs[i].Amount
				e.Confidence = obs[i].Confidence
				break
			}
		}
	}

	// Most recent resolved cadence wins.
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].Frequency != FreqUnknown {
			e.Frequency = obs[i].Frequency
			break
		}
	}
	e.IsTrial = e.Frequency == FreqTrial
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].TrialEndsAt != nil {
			e.TrialEndsAt = obs[i].TrialEndsAt
			break
		}
	}

	e.PriceMismatch = priceMismatch(obs, tolerance)
	return e
}

// priceMismatch reports whether two confident amounts inside one
// merchant key diverge by more than the tolerance (or disagree on
// currency). Price changes and overlapping duplicate subscriptions
// look identical here, so the entity is only flagged for review.
func priceMismatch(obs []Candidate, tolerance decimal.Decimal) bool {
	var ref *Amount
	for i := range obs {
		a := obs[i].Amount
		if a == nil || obs[i].Confidence == ConfidenceLow {
			continue
		}
		if ref == nil {
			ref = a
			continue
		}
		if a.Currency != ref.Currency {
			return true
		}
		base := decimal.Min(ref.Value, a.Value)
		if base.IsZero() {
			continue
		}
		diff := ref.Value.Sub(a.Value).Abs().Div(base)
		if diff.GreaterThan(tolerance) {
			return true
		}
	}
	return false
}
