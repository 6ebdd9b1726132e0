// Package urlutil canonicalises URLs and answers crawl-scope membership.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"pdfcrawler/pkg/types"
)

// ErrInvalidURL marks strings that cannot be parsed or resolved into an
// absolute http(s) URL. It is fatal for the seed, recoverable elsewhere.
var ErrInvalidURL = errors.New("invalid url")

// Normalize resolves raw against base (when base is non-nil), lowercases
// scheme and host, strips default ports and fragments, and leaves path and
// query exactly as given. Query strings are load-bearing tokens for many
// portals and must never be reordered, decoded, or truncated.
func Normalize(raw string, base *url.URL) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	var u *url.URL
	var err error
	if base != nil {
		u, err = base.Parse(raw)
	} else {
		u, err = url.Parse(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q is not absolute and no base was given", ErrInvalidURL, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPortForScheme(u.Scheme) {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	return u, nil
}

// Canonical returns the canonical string form of a normalized URL. Two URLs
// are duplicates iff their canonical forms are equal.
func Canonical(u *url.URL) string {
	if u == nil {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := u.Scheme + "://" + u.Host + path
	if q := u.RawQuery; q != "" {
		key += "?" + q
	}
	return key
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// RegisteredDomain returns the public-suffix-aware registered domain for a
// host, e.g. "example.com" for "a.b.example.com".
func RegisteredDomain(host string) (string, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("registered domain of %q: %w", host, err)
	}
	return domain, nil
}

// Scope is the crawl boundary derived once from the seed at crawl start.
type Scope struct {
	Kind types.ScopeKind

	seedCanonical string
	// seedHostPort is the normalized host with any non-default port; host
	// scope is exact equality on it, so seed:8080 does not admit seed:9090.
	seedHostPort string
	seedHost     string
	seedDomain   string
}

// NewScope derives the scope key from a normalized seed URL.
func NewScope(kind types.ScopeKind, seed *url.URL) (Scope, error) {
	if seed == nil {
		return Scope{}, fmt.Errorf("%w: nil seed", ErrInvalidURL)
	}
	s := Scope{
		Kind:          kind,
		seedCanonical: Canonical(seed),
		seedHostPort:  seed.Host,
		seedHost:      seed.Hostname(),
	}
	if kind == types.ScopeDomain {
		domain, err := RegisteredDomain(seed.Hostname())
		if err != nil {
			return Scope{}, err
		}
		s.seedDomain = domain
	}
	return s, nil
}

// Contains reports whether a normalized URL lies inside the crawl scope.
// Under page scope only the exact canonical seed matches; drill-down detail
// pages are admitted out-of-band by the engine, never through this
// predicate.
func (s Scope) Contains(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch s.Kind {
	case types.ScopePage:
		return Canonical(u) == s.seedCanonical
	case types.ScopeHost:
		return u.Host == s.seedHostPort
	case types.ScopeDomain:
		domain, err := RegisteredDomain(u.Hostname())
		if err != nil {
			return false
		}
		return domain == s.seedDomain
	default:
		return false
	}
}

// SameRegisteredDomain reports whether the URL shares the seed's registered
// domain. Used to keep PDF downloads near the seed even when the link-follow
// scope is stricter.
func (s Scope) SameRegisteredDomain(u *url.URL) bool {
	if u == nil {
		return false
	}
	seedDomain := s.seedDomain
	if seedDomain == "" {
		var err error
		seedDomain, err = RegisteredDomain(s.seedHost)
		if err != nil {
			return false
		}
	}
	domain, err := RegisteredDomain(u.Hostname())
	if err != nil {
		return false
	}
	return domain == seedDomain
}
