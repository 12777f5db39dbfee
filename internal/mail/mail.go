package mail

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RawEmail is one message as delivered by a Source. The engine never
// mutates it.
type RawEmail struct {
	MessageID    string
	SenderDomain string
	Subject      string
	BodyText     string
	ReceivedAt   time.Time
	HasHTML      bool
}

// Source yields raw email records matching a search query. A fetch is
// finite and not restartable mid-iteration; callers re-fetch if they
// need to start over. Authentication and token lifecycle belong to the
// implementation.
type Source interface {
	Fetch(ctx context.Context, query string, since time.Time, maxResults int) ([]RawEmail, error)
}

var (
	// ErrAuthFailure means the source could not authenticate. Fatal to a scan.
	ErrAuthFailure = errors.New("mail: authentication failed")
	// ErrRateLimited means the source exhausted its bounded retries
	// against an upstream rate limit.
	ErrRateLimited = errors.New("mail: rate limited")
)

// DomainOf extracts the sender domain from an RFC 5322 From header
// value such as `"Netflix" <info@mailer.netflix.com>`.
func DomainOf(from string) string {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return ""
	}
	rest := from[at+1:]
	if i := strings.IndexAny(rest, "> \t"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(strings.TrimSpace(rest))
}
