package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

var gmailScopes = []string{"https://www.googleapis.com/auth/gmail.readonly"}

// GmailConfig configures the Gmail REST source.
type GmailConfig struct {
	CredentialsPath   string
	TokenPath         string
	RequestsPerSecond float64
	MaxRetries        int
}

// GmailSource implements Source over the Gmail REST API. Requests are
// rate limited client-side and retried with exponential backoff when
// the API answers 429 or a transient 5xx.
type GmailSource struct {
	client     *http.Client
	limiter    *rate.Limiter
	baseURL    string
	maxRetries int
}

// NewGmailSource builds a source from OAuth client credentials and a
// previously authorized token file. Obtaining the initial token
// (browser consent flow) is setup tooling and out of scope here.
func NewGmailSource(ctx context.Context, cfg GmailConfig) (*GmailSource, error) {
	conf, err := loadOAuthConfig(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load credentials: %v", ErrAuthFailure, err)
	}
	tok, err := loadToken(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load token: %v", ErrAuthFailure, err)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &GmailSource{
		client:     conf.Client(ctx, tok),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:    gmailBaseURL,
		maxRetries: retries,
	}, nil
}

// NewGmailSourceWithClient wires an explicit HTTP client and base URL.
// Used by tests against a local server.
func NewGmailSourceWithClient(client *http.Client, baseURL string, rps float64, maxRetries int) *GmailSource {
	if rps <= 0 {
		rps = 100
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GmailSource{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:    baseURL,
		maxRetries: maxRetries,
	}
}

// Fetch lists message IDs matching the query since the given date and
// hydrates each into a RawEmail.
func (g *GmailSource) Fetch(ctx context.Context, query string, since time.Time, maxResults int) ([]RawEmail, error) {
	if maxResults <= 0 {
		maxResults = 100
	}
	full := fmt.Sprintf("%s after:%s", query, since.Format("2006/01/02"))

	ids, err := g.listMessageIDs(ctx, full, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]RawEmail, 0, len(ids))
	for _, id := range ids {
		em, err := g.getMessage(ctx, id)
		switch {
		case errors.Is(err, ErrAuthFailure):
			return nil, err
		case errors.Is(err, ErrRateLimited):
			// Hand back what was hydrated so the caller can report
			// partial results.
			return out, err
		case err != nil:
			// A single bad message degrades that record, not the scan.
			slog.Warn("skipping message", "id", id, "error", err)
			continue
		}
		out = append(out, em)
	}
	return out, nil
}

func (g *GmailSource) listMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < maxResults {
		v := url.Values{}
		v.Set("q", query)
		v.Set("maxResults", strconv.Itoa(min(maxResults-len(ids), 100)))
		if pageToken != "" {
			v.Set("pageToken", pageToken)
		}
		body, err := g.doGet(ctx, g.baseURL+"/users/me/messages?"+v.Encode())
		if err != nil {
			return nil, err
		}
		var page struct {
			Messages []struct {
				ID string `json:"id"`
			} `json:"messages"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		if page.NextPageToken == "" || len(page.Messages) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

type gmailMessage struct {
	ID           string       `json:"id"`
	InternalDate string       `json:"internalDate"`
	Payload      gmailPayload `json:"payload"`
}

type gmailPayload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPayload `json:"parts"`
}

func (g *GmailSource) getMessage(ctx context.Context, id string) (RawEmail, error) {
	body, err := g.doGet(ctx, g.baseURL+"/users/me/messages/"+url.PathEscape(id)+"?format=full")
	if err != nil {
		return RawEmail{}, err
	}
	var msg gmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return RawEmail{}, fmt.Errorf("decode message %s: %w", id, err)
	}

	em := RawEmail{MessageID: msg.ID}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			em.SenderDomain = DomainOf(h.Value)
		case "Subject":
			em.Subject = h.Value
		}
	}
	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		em.ReceivedAt = time.UnixMilli(ms).UTC()
	}

	plain, htmlBody := collectBodies(msg.Payload)
	switch {
	case plain != "":
		em.BodyText = plain
	case htmlBody != "":
		em.BodyText = StripHTML(htmlBody)
		em.HasHTML = true
	}
	return em, nil
}

// collectBodies walks the MIME tree and returns the first text/plain
// and text/html bodies found.
func collectBodies(p gmailPayload) (plain, htmlBody string) {
	if data := p.Body.Data; data != "" {
		decoded := decodeBase64URL(data)
		switch p.MimeType {
		case "text/plain":
			if plain == "" {
				plain = decoded
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = decoded
			}
		}
	}
	for _, part := range p.Parts {
		cp, ch := collectBodies(part)
		if plain == "" {
			plain = cp
		}
		if htmlBody == "" {
			htmlBody = ch
		}
	}
	return plain, htmlBody
}

func decodeBase64URL(s string) string {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return string(b)
	}
	return ""
}

// doGet performs one rate-limited GET with bounded backoff. 401/403
// abort immediately as auth failures; 429 and 5xx retry until the
// retry budget runs out, then surface as ErrRateLimited.
func (g *GmailSource) doGet(ctx context.Context, u string) ([]byte, error) {
	var out []byte
	op := func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: http %d", ErrAuthFailure, resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: http %d", ErrRateLimited, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("gmail: unexpected status %d", resp.StatusCode))
		}
		out, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(g.maxRetries)))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds struct {
		Installed struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		} `json:"installed"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Installed.ClientID == "" {
		return nil, fmt.Errorf("credentials file %s has no installed client", path)
	}
	return &oauth2.Config{
		ClientID:     creds.Installed.ClientID,
		ClientSecret: creds.Installed.ClientSecret,
		Scopes:       gmailScopes,
		Endpoint:     google.Endpoint,
	}, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
