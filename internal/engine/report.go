package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategorySummary groups the monthly spend of one category.
type CategorySummary struct {
	Count       int
	MonthlyCost decimal.Decimal
}

// Report is the final output of one scan. Built once, immutable after
// construction, self-contained: nothing survives across runs unless
// exported.
type Report struct {
	RunID            string
	Entities         []*Entity
	MonthlyTotal     decimal.Decimal
	AnnualProjection decimal.Decimal
	GeneratedAt      time.Time
	WindowStart      time.Time
	WindowEnd        time.Time
	MaxResults       int
	Categories       map[Category]CategorySummary
	ActiveCount      int
	// Partial marks a report assembled from an interrupted scan, e.g.
	// after rate-limit retries ran out.
	Partial  bool
	Warnings []string
}

// BuildReport computes cost projections over annotated entities.
// Trials are not billed yet and unused subscriptions are reported
// separately, so neither contributes to the monthly total;
// duplicate suspects still bill and stay in.
func BuildReport(entities []*Entity, now, windowStart time.Time, maxResults int) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		Entities:    entities,
		GeneratedAt: now,
		WindowStart: windowStart,
		WindowEnd:   now,
		MaxResults:  maxResults,
		Categories:  make(map[Category]CategorySummary),
	}
	total := decimal.Zero
	for _, e := range entities {
		if e.Status == StatusUnused || e.IsTrial {
			continue
		}
		r.ActiveCount++
		if e.CurrentAmount == nil {
			continue
		}
		monthly := MonthlyCost(*e.CurrentAmount, e.Frequency)
		total = total.Add(monthly)

		cs := r.Categories[e.Category]
		cs.Count++
		cs.MonthlyCost = cs.MonthlyCost.Add(monthly)
		r.Categories[e.Category] = cs
	}
	r.MonthlyTotal = total.Round(2)
	// Derived from the rounded total so the published figures always
	// satisfy annual = monthly * 12.
	r.AnnualProjection = r.MonthlyTotal.Mul(twelve)
	return r
}
