package engine

import "strings"

// Category is a service category.
type Category string

const (
	CategoryStreaming    Category = "streaming"
	CategoryProductivity Category = "productivity"
	CategoryShopping     Category = "shopping"
	CategoryUtilities    Category = "utilities"
	CategoryFinance      Category = "finance"
	CategoryOther        Category = "other"
)

// ParseCategory validates a configured category name. The empty
// Category return signals an unrecognized name.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryStreaming:
		return CategoryStreaming
	case CategoryProductivity:
		return CategoryProductivity
	case CategoryShopping:
		return CategoryShopping
	case CategoryUtilities:
		return CategoryUtilities
	case CategoryFinance:
		return CategoryFinance
	case CategoryOther:
		return CategoryOther
	default:
		return ""
	}
}

// CategoryClassifier maps a sender domain and merchant name to a
// category. The table is data: entries are either domains
// ("netflix.com") matched exactly or by suffix, or bare keywords
// ("netflix") matched against the merchant name. It never fails; the
// fallback is always CategoryOther.
type CategoryClassifier struct {
	table map[string]Category
}

func NewCategoryClassifier(table map[string]Category) *CategoryClassifier {
	if table == nil {
		table = DefaultCategoryTable()
	}
	return &CategoryClassifier{table: table}
}

func (c *CategoryClassifier) Classify(senderDomain, merchant string) Category {
	domain := strings.ToLower(strings.TrimSpace(senderDomain))
	if cat, ok := c.table[domain]; ok {
		return cat
	}
	// Suffix match lets mailer subdomains (info.netflix.com) hit their
	// registered domain entry.
	for i := strings.Index(domain, "."); i >= 0; i = strings.Index(domain, ".") {
		domain = domain[i+1:]
		if cat, ok := c.table[domain]; ok {
			return cat
		}
	}
	m := strings.ToLower(strings.TrimSpace(merchant))
	if m != "" {
		for key, cat := range c.table {
			if strings.Contains(key, ".") {
				continue
			}
			if strings.Contains(m, key) {
				return cat
			}
		}
	}
	return CategoryOther
}

// DefaultCategoryTable is the built-in provider table. Deployments
// extend or replace it from configuration; adding a provider never
// needs a code change.
func DefaultCategoryTable() map[string]Category {
	t := map[string]Category{}
	add := func(cat Category, keys ...string) {
		for _, k := range keys {
			t[k] = cat
		}
	}
	add(CategoryStreaming,
		"netflix.com", "spotify.com", "hulu.com", "disney.com", "disneyplus.com",
		"hbo.com", "hbomax.com", "primevideo.com", "paramount.com", "peacocktv.com",
		"crunchyroll.com", "youtube.com", "tidal.com",
		"netflix", "spotify", "hulu", "disney", "hbo", "paramount", "peacock",
		"crunchyroll", "apple music", "prime video", "tidal")
	add(CategoryProductivity,
		"microsoft.com", "office.com", "google.com", "dropbox.com", "notion.so",
		"slack.com", "zoom.us", "adobe.com", "canva.com", "grammarly.com",
		"evernote.com", "airtable.com", "asana.com", "trello.com", "github.com",
		"microsoft", "office", "workspace", "dropbox", "notion", "slack", "zoom",
		"adobe", "canva", "grammarly", "evernote", "airtable", "asana", "trello")
	add(CategoryShopping,
		"amazon.com", "walmart.com", "instacart.com", "doordash.com", "grubhub.com",
		"hellofresh.com", "blueapron.com", "costco.com",
		"amazon", "walmart", "instacart", "doordash", "uber eats", "grubhub",
		"hello fresh", "blue apron", "costco")
	add(CategoryUtilities,
		"aws.amazon.com", "azure.com", "digitalocean.com", "linode.com", "heroku.com",
		"netlify.com", "vercel.com", "norton.com", "mcafee.com", "1password.com",
		"lastpass.com", "dashlane.com",
		"aws", "azure", "google cloud", "digitalocean", "linode", "heroku",
		"netlify", "vercel", "vpn", "norton", "mcafee", "lastpass", "1password", "dashlane")
	add(CategoryFinance,
		"stripe.com", "paypal.com", "square.com", "wise.com",
		"stripe", "paypal", "square")
	return t
}
