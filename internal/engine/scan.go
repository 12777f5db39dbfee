package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"subaudit/internal/mail"
)

// DefaultQueries is the subscription search vocabulary sent to the
// mail source. Provider-domain queries are generated separately from
// the provider list.
func DefaultQueries() []string {
	return []string{
		`subject:"subscription confirmation"`,
		`subject:"your subscription"`,
		`subject:"payment receipt"`,
		`subject:"recurring payment"`,
		`from:(stripe.com OR paypal.com OR square.com)`,
		`"monthly subscription" OR "annual subscription"`,
		`"free trial" OR "trial ends" OR "trial period"`,
		`subject:"invoice" AND ("monthly" OR "annually")`,
	}
}

// DefaultProviders is the built-in list of known subscription service
// domains.
func DefaultProviders() []string {
	return []string{
		"netflix.com", "spotify.com", "adobe.com", "dropbox.com",
		"amazon.com", "apple.com", "microsoft.com", "google.com",
		"hulu.com", "disney.com", "hbo.com", "github.com",
		"notion.so", "canva.com", "grammarly.com", "zoom.us",
	}
}

// Scanner runs the single-pass batch pipeline: fetch, extract
// concurrently, aggregate serially, annotate, report.
type Scanner struct {
	Source    mail.Source
	Extractor *Extractor
	Detector  DetectorConfig
	Queries   []string
	Providers []string
	Workers   int
}

// ScanOptions are the per-run knobs.
type ScanOptions struct {
	Days       int
	MaxResults int
	Now        time.Time // zero means wall clock
}

// Run executes one scan. An authentication failure aborts with no
// report. Rate-limit exhaustion returns the partial report alongside
// the error so callers can still show what was gathered. Everything
// else degrades per record.
func (s *Scanner) Run(ctx context.Context, opts ScanOptions) (*Report, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	days := opts.Days
	if days <= 0 {
		days = 365
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 500
	}
	since := now.AddDate(0, 0, -days)

	emails, partial, warnings, err := s.fetchAll(ctx, since, maxResults)
	if err != nil {
		return nil, err
	}
	slog.Info("scan fetched", "emails", len(emails), "partial", partial)

	agg := NewAggregator(s.Detector.PriceTolerance)
	s.extractInto(ctx, emails, agg)

	entities := agg.Entities()
	NewDetector(s.Detector, now).Annotate(entities)

	report := BuildReport(entities, now, since, maxResults)
	report.Partial = partial
	report.Warnings = warnings
	if partial {
		return report, fmt.Errorf("scanning: %w", mail.ErrRateLimited)
	}
	return report, nil
}

// fetchAll runs every query and deduplicates the union by message ID.
// Paginated and retried delivery of the same message collapses here
// first; the aggregator enforces the same invariant again per key.
func (s *Scanner) fetchAll(ctx context.Context, since time.Time, maxResults int) ([]mail.RawEmail, bool, []string, error) {
	queries := s.Queries
	if len(queries) == 0 {
		queries = DefaultQueries()
	}
	providers := s.Providers
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	for _, p := range providers {
		queries = append(queries, fmt.Sprintf("from:(%s)", p))
	}

	seen := make(map[string]mail.RawEmail)
	fold := func(batch []mail.RawEmail) {
		for _, em := range batch {
			if em.MessageID == "" {
				continue
			}
			if _, ok := seen[em.MessageID]; !ok {
				seen[em.MessageID] = em
			}
		}
	}
	var warnings []string
	for _, q := range queries {
		batch, err := s.Source.Fetch(ctx, q, since, maxResults)
		switch {
		case errors.Is(err, mail.ErrAuthFailure):
			return nil, false, nil, fmt.Errorf("authentication: %w", err)
		case errors.Is(err, mail.ErrRateLimited):
			// The source may have hydrated part of the batch before the
			// retry budget ran out; keep it.
			fold(batch)
			w := fmt.Sprintf("rate limited on query %q, results are partial", q)
			slog.Warn("fetch rate limited", "query", q)
			return dedupedList(seen), true, append(warnings, w), nil
		case err != nil:
			w := fmt.Sprintf("query %q failed: %v", q, err)
			slog.Warn("fetch failed, skipping query", "query", q, "error", err)
			warnings = append(warnings, w)
			continue
		}
		fold(batch)
	}
	return dedupedList(seen), false, warnings, nil
}

func dedupedList(seen map[string]mail.RawEmail) []mail.RawEmail {
	out := make([]mail.RawEmail, 0, len(seen))
	for _, em := range seen {
		out = append(out, em)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// extractInto fans extraction out over a bounded worker pool and
// drains results into the aggregator from this goroutine only.
// Concurrent extraction, serial aggregation.
func (s *Scanner) extractInto(ctx context.Context, emails []mail.RawEmail, agg *Aggregator) {
	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(emails) && len(emails) > 0 {
		workers = len(emails)
	}

	jobs := make(chan mail.RawEmail)
	results := make(chan *Candidate)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for em := range jobs {
				if c := s.Extractor.Extract(ctx, em); c != nil {
					results <- c
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, em := range emails {
			select {
			case jobs <- em:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for c := range results {
		agg.Add(c)
	}
}
