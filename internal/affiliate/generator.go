// Package affiliate builds outbound links for platform entries.
package affiliate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/metrics"
)

const (
	webSearchURL = "https://www.google.com/search?q="
	tokenLength  = 16
)

type Config struct {
	// Secret keys the click token. Without one a random key is generated,
	// so tokens are only stable for the life of the process.
	Secret     string
	SourceTag  string
	AmazonTag  string
	AppleToken string
}

type Generator struct {
	cfg    Config
	secret []byte
}

func NewGenerator(cfg Config) *Generator {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
		logging.Warn().Str("component", "affiliate").Msg("no affiliate secret configured, click tokens will change on restart")
	}
	return &Generator{cfg: cfg, secret: secret}
}

// Supports reports whether a tracked link can be built for the service. It
// is handed to the provider clients to set PlatformEntry.AffiliateSupported.
func (g *Generator) Supports(providerName string) bool {
	p, ok := partners[domain.NormalizeProviderName(providerName)]
	return ok && g.trackable(p)
}

func (g *Generator) trackable(p partner) bool {
	return p.tagParam != "" && p.tag != nil && p.tag(g.cfg) != ""
}

// Token is the click-tracking token for a user, title and service. It is
// stable for the same inputs and cannot be reversed to the user id.
func (g *Generator) Token(userID string, contentID int64, providerName string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(userID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(contentID, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(domain.NormalizeProviderName(providerName)))
	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}

// Build returns the outbound link for entry. It never fails: a tracked link
// when the service is a configured partner and the entry supports it, else
// the service's own site search, else a web search for the title.
func (g *Generator) Build(entry domain.PlatformEntry, userID string, contentID int64, title string) (link domain.AffiliateLink) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("component", "affiliate").
				Interface("panic", r).
				Str("provider", entry.ProviderName).
				Msg("link generation panicked, using web search")
			link = webSearch(title)
		}
		metrics.AffiliateLinks.WithLabelValues(string(link.Kind)).Inc()
	}()

	p, known := partners[entry.NormalizedName()]
	if !known {
		return webSearch(title)
	}

	if entry.AffiliateSupported && g.trackable(p) {
		if tracked, ok := g.tracked(p, entry, userID, contentID, title); ok {
			return tracked
		}
	}

	return domain.AffiliateLink{URL: siteSearch(p, title), Kind: domain.LinkSiteSearch}
}

// tracked tags the entry's own deep link when it has one, else the site search.
func (g *Generator) tracked(p partner, entry domain.PlatformEntry, userID string, contentID int64, title string) (domain.AffiliateLink, bool) {
	base := entry.WebURL
	if base == "" {
		base = siteSearch(p, title)
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		u, err = url.Parse(siteSearch(p, title))
		if err != nil {
			return domain.AffiliateLink{}, false
		}
	}

	token := g.Token(userID, contentID, entry.ProviderName)
	q := u.Query()
	q.Set(p.tagParam, p.tag(g.cfg))
	if p.subParam != "" {
		q.Set(p.subParam, token)
	}
	if g.cfg.SourceTag != "" {
		q.Set("utm_source", g.cfg.SourceTag)
	}
	u.RawQuery = q.Encode()

	return domain.AffiliateLink{URL: u.String(), Kind: domain.LinkTracked, Token: token}, true
}

func siteSearch(p partner, title string) string {
	q := url.QueryEscape(title)
	if p.pathQuery {
		q = url.PathEscape(title)
	}
	return strings.Replace(p.search, "{q}", q, 1)
}

func webSearch(title string) domain.AffiliateLink {
	query := strings.TrimSpace(title + " streaming")
	return domain.AffiliateLink{URL: webSearchURL + url.QueryEscape(query), Kind: domain.LinkWebSearch}
}
