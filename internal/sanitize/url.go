package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// DefaultTrustedDomain is the course provider's registrable domain.
	DefaultTrustedDomain = "sss.ch"
	// DefaultFallbackURL is the provider's generic course listing page.
	DefaultFallbackURL = "https://formation.sss.ch/Calendrier-des-Cours"
)

var courseKeyExpr = regexp.MustCompile(`key=[0-9]+`)

// URLValidator allow-lists outbound links to course detail pages.
type URLValidator struct {
	TrustedDomain string
	FallbackURL   string
}

// NewURLValidator applies defaults for empty settings.
func NewURLValidator(trustedDomain, fallbackURL string) URLValidator {
	trustedDomain = strings.ToLower(strings.Trim(strings.TrimSpace(trustedDomain), "."))
	if trustedDomain == "" {
		trustedDomain = DefaultTrustedDomain
	}
	if strings.TrimSpace(fallbackURL) == "" {
		fallbackURL = DefaultFallbackURL
	}
	return URLValidator{TrustedDomain: trustedDomain, FallbackURL: fallbackURL}
}

// IsValid reports whether raw is an https detail-page link on the trusted
// domain (or one of its subdomains) carrying a numeric course key.
func (v URLValidator) IsValid(raw string) bool {
	if raw == "" || v.TrustedDomain == "" {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host != v.TrustedDomain && !strings.HasSuffix(host, "."+v.TrustedDomain) {
		return false
	}

	if !strings.Contains(u.EscapedFragment(), "detail") {
		return false
	}

	return courseKeyExpr.MatchString(raw)
}

// Resolve returns raw when valid, otherwise the fallback URL. The boolean
// reports whether raw was kept.
func (v URLValidator) Resolve(raw string) (string, bool) {
	if v.IsValid(raw) {
		return raw, true
	}
	return v.FallbackURL, false
}
