package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subaudit/internal/mail"
	"subaudit/internal/oracle"
)

// subscriptionKeywords is the precision control: an email with no
// merchant signal and none of these is not a candidate.
var subscriptionKeywords = []string{
	"subscription", "payment receipt", "recurring payment", "recurring charge",
	"invoice", "renewal", "renews", "membership", "billing", "free trial",
	"trial period", "trial ends", "your plan",
}

// genericMailHosts never identify a merchant.
var genericMailHosts = map[string]struct{}{
	"gmail": {}, "googlemail": {}, "yahoo": {}, "hotmail": {}, "outlook": {},
	"live": {}, "icloud": {}, "aol": {}, "proton": {}, "protonmail": {}, "mail": {},
}

// Extractor builds candidate records from raw emails. Deterministic
// parsing always runs first; the oracle, when configured, only fills
// fields the deterministic pass left empty.
type Extractor struct {
	Categories *CategoryClassifier
	Oracle     oracle.Provider // nil disables assistant delegation
	Providers  []string        // known provider domains
}

// Extract returns nil when the email carries no subscription signal.
// Oracle failures degrade to deterministic-only extraction and are
// never fatal.
func (e *Extractor) Extract(ctx context.Context, em mail.RawEmail) *Candidate {
	body := em.BodyText
	if em.HasHTML || strings.ContainsRune(body, '<') {
		// Never trust the connector to have reduced markup.
		body = mail.StripHTML(body)
	}
	text := em.Subject + "\n" + body
	lower := strings.ToLower(text)

	keywordHit := false
	for _, kw := range subscriptionKeywords {
		if strings.Contains(lower, kw) {
			keywordHit = true
			break
		}
	}
	providerHit := matchesProvider(em.SenderDomain, e.Providers)
	if !keywordHit && !providerHit {
		return nil
	}
	merchant := merchantFromDomain(em.SenderDomain)

	amount, amtConf := ParseAmount(text)
	freq := ClassifyFrequency(text)
	trialEnd := parseTrialEnd(text, em.ReceivedAt)

	conf := ConfidenceHigh
	if amount != nil && amtConf == ConfidenceLow {
		conf = ConfidenceMedium
	}

	if e.Oracle != nil && (merchant == "" || amount == nil) {
		ext, err := e.Oracle.Extract(ctx, text)
		if err != nil {
			slog.Warn("oracle extraction failed, continuing deterministic-only",
				"message_id", em.MessageID, "error", err)
		} else {
			merchant, amount, freq, conf = mergeOracle(merchant, amount, freq, conf, ext)
		}
	}

	if merchant == "" {
		return nil
	}

	return &Candidate{
		SourceMessageID: em.MessageID,
		Merchant:        merchant,
		Amount:          amount,
		Frequency:       freq,
		Category:        e.Categories.Classify(em.SenderDomain, merchant),
		Confidence:      conf,
		ReceivedAt:      em.ReceivedAt,
		IsTrial:         freq == FreqTrial,
		TrialEndsAt:     trialEnd,
	}
}

// mergeOracle is the single arbitration point between deterministic
// parsing and the assistant: a deterministic field always wins, an
// assistant field fills gaps only and drags confidence down.
func mergeOracle(merchant string, amount *Amount, freq Frequency, conf Confidence, ext oracle.Extraction) (string, *Amount, Frequency, Confidence) {
	filled := false
	if merchant == "" {
		if m := sanitizeMerchant(ext.Merchant); m != "" {
			merchant = m
			filled = true
		}
	}
	if amount == nil && ext.Amount > 0 {
		if cur := validCurrency(ext.Currency); cur != "" {
			amount = &Amount{Value: decimal.NewFromFloat(ext.Amount), Currency: cur}
			filled = true
		}
	}
	if freq == FreqUnknown {
		if f := ParseFrequency(ext.Frequency); f != FreqUnknown {
			freq = f
			filled = true
		}
	}
	if filled {
		conf = ConfidenceLow
	}
	return merchant, amount, freq, conf
}

func sanitizeMerchant(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 80 {
		return ""
	}
	return s
}

func validCurrency(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case USD:
		return USD
	case GBP:
		return GBP
	case EUR:
		return EUR
	default:
		return ""
	}
}

func matchesProvider(domain string, providers []string) bool {
	domain = strings.ToLower(domain)
	for _, p := range providers {
		if domain == p || strings.HasSuffix(domain, "."+p) {
			return true
		}
	}
	return false
}

// secondLevelTLDs are registry labels that sit in front of a country
// TLD ("bbc.co.uk").
var secondLevelTLDs = map[string]struct{}{
	"co": {}, "com": {}, "org": {}, "net": {}, "ac": {}, "gov": {},
}

// merchantFromDomain derives a service name from the sender domain:
// "mailer.netflix.com" -> "Netflix". Generic mail hosts yield nothing.
func merchantFromDomain(domain string) string {
	labels := strings.Split(strings.ToLower(strings.TrimSpace(domain)), ".")
	if len(labels) < 2 {
		return ""
	}
	name := labels[len(labels)-2]
	if _, ok := secondLevelTLDs[name]; ok && len(labels) >= 3 {
		name = labels[len(labels)-3]
	}
	if _, ok := genericMailHosts[name]; ok || name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

var trialDateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)trial\s+(?:will\s+)?end(?:s|ing)?\s+(?:on\s+)?([A-Za-z]+\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`),
	regexp.MustCompile(`(?i)trial\s+(?:will\s+)?end(?:s|ing)?\s+(?:on\s+)?(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)until\s+([A-Za-z]+\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`),
	regexp.MustCompile(`(?i)expires?\s+(?:on\s+)?([A-Za-z]+\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`),
}

var ordinalRe = regexp.MustCompile(`(\d)(?:st|nd|rd|th)`)

var trialRelativeRe = regexp.MustCompile(`(?i)trial\s+(?:will\s+)?end(?:s|ing)?\s+in\s+(\d{1,3})\s+days?`)

var trialDateLayouts = []string{
	"January 2, 2006", "January 2 2006",
	"01/02/2006", "01-02-2006", "1/2/2006",
	"02/01/2006", "02-01-2006",
}

// parseTrialEnd pulls an explicit trial end date out of the text, or
// nil when none parses. "Ends in N days" phrasing is anchored at the
// email's receive time. A default-length estimate is never produced
// here; that is the anomaly detector's job and is tagged as such.
func parseTrialEnd(text string, receivedAt time.Time) *time.Time {
	for _, re := range trialDateRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := ordinalRe.ReplaceAllString(m[1], "$1")
		for _, layout := range trialDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	if m := trialRelativeRe.FindStringSubmatch(text); m != nil && !receivedAt.IsZero() {
		if days, err := strconv.Atoi(m[1]); err == nil {
			t := receivedAt.AddDate(0, 0, days).UTC()
			return &t
		}
	}
	return nil
}
