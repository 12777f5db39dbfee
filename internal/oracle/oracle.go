// Package oracle wraps the natural-language extraction assistant. The
// assistant is advisory: callers validate everything it returns and
// must work identically when no provider is configured.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Extraction is the assistant's best-effort structured guess for one
// email body. Zero values mean "no opinion"; nothing here is trusted
// until the engine re-validates it.
type Extraction struct {
	Merchant  string  `json:"merchant"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Frequency string  `json:"frequency"`
}

// Provider extracts subscription hints from raw email text.
type Provider interface {
	Extract(ctx context.Context, raw string) (Extraction, error)
}

// ErrUnavailable means the assistant call failed or timed out. Callers
// degrade to deterministic-only parsing for that record.
var ErrUnavailable = errors.New("oracle: unavailable")

// CachingProvider memoizes extractions by body hash so retried
// delivery of the same message never pays for a second assistant call.
type CachingProvider struct {
	inner Provider
	cache *gocache.Cache
}

func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachingProvider{inner: inner, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachingProvider) Extract(ctx context.Context, raw string) (Extraction, error) {
	key := hashKey(raw)
	if v, ok := c.cache.Get(key); ok {
		return v.(Extraction), nil
	}
	ext, err := c.inner.Extract(ctx, raw)
	if err != nil {
		return Extraction{}, err
	}
	c.cache.Set(key, ext, gocache.DefaultExpiration)
	return ext, nil
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
