// Package engine turns raw email records into a deduplicated inventory
// of subscriptions with cost projections and anomaly flags.
package engine

import "time"

// Confidence tags where a parsed field came from. It governs
// arbitration (deterministic beats assistant), not scoring.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"    // assistant-derived
	ConfidenceMedium Confidence = "medium" // deterministic with assistant gap-fill, or ambiguous parse
	ConfidenceHigh   Confidence = "high"   // fully deterministic parse
)

// Status is the terminal anomaly classification of an entity. Exactly
// one applies; precedence is duplicate_suspect > trial_ending > unused
// > active.
type Status string

const (
	StatusActive           Status = "active"
	StatusUnused           Status = "unused"
	StatusDuplicateSuspect Status = "duplicate_suspect"
	StatusTrialEnding      Status = "trial_ending"
)

// Candidate is a single-email subscription signal. It is produced by
// the Extractor and consumed by the Aggregator, then discarded.
type Candidate struct {
	SourceMessageID string
	Merchant        string
	Amount          *Amount
	Frequency       Frequency
	Category        Category
	Confidence      Confidence
	ReceivedAt      time.Time
	IsTrial         bool
	TrialEndsAt     *time.Time
}

// Charge is one observed billing signal.
type Charge struct {
	ReceivedAt time.Time
	Amount     *Amount
	Confidence Confidence
	MessageID  string
}

// Entity is one distinct subscription service, keyed by merchant key.
type Entity struct {
	ServiceName   string
	MerchantKey   string
	Category      Category
	CurrentAmount *Amount
	Frequency     Frequency
	Confidence    Confidence
	ChargeHistory []Charge
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
	IsTrial       bool
	TrialEndsAt   *time.Time
	// TrialEndEstimated distinguishes an estimated trial end from one
	// parsed out of the email text.
	TrialEndEstimated bool
	Status            Status
	// PriceMismatch records a >tolerance divergence between confident
	// amounts within this merchant key. Surfaced, never auto-resolved.
	PriceMismatch bool
}
