// Package robots evaluates robots.txt rules with one cached ruleset per
// origin for the lifetime of a crawl.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"pdfcrawler/internal/config"
)

// Agent answers allow/deny per URL. A robots.txt fetch failure is treated
// as "allow" (fail-open) so transient errors never produce false negatives;
// the failure is surfaced once per origin through the warn return.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool

	mu     sync.Mutex
	cache  map[string]cacheEntry
	warned map[string]struct{}
}

type cacheEntry struct {
	fetched time.Time
	// rules is nil when the origin's robots.txt could not be fetched or
	// parsed; such origins are allow-all.
	rules *robotstxt.RobotsData
}

// NewAgent constructs a robots agent. When respect is false every URL is
// allowed and no robots.txt is ever fetched.
func NewAgent(cfg config.RobotsConfig, respect bool, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   respect,
		cache:     make(map[string]cacheEntry),
		warned:    make(map[string]struct{}),
	}
}

// Allowed reports whether the target URL is permitted. The warn return is
// non-nil exactly once per origin whose robots.txt fetch failed.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) (allowed bool, warn error) {
	if target == nil || !target.IsAbs() {
		return false, nil
	}
	if !a.respect {
		return true, nil
	}

	origin := strings.ToLower(target.Scheme + "://" + target.Host)

	rules, fetchErr := a.rules(ctx, origin)
	if fetchErr != nil {
		a.mu.Lock()
		_, alreadyWarned := a.warned[origin]
		a.warned[origin] = struct{}{}
		a.mu.Unlock()
		if !alreadyWarned {
			warn = fmt.Errorf("robots.txt unavailable for %s, allowing all: %w", origin, fetchErr)
		}
		return true, warn
	}
	if rules == nil {
		return true, nil
	}

	group := rules.FindGroup(a.userAgent)
	if group == nil {
		group = rules.FindGroup("*")
		if group == nil {
			return true, nil
		}
	}
	path := target.EscapedPath()
	if q := target.RawQuery; q != "" {
		path += "?" + q
	}
	return group.Test(path), nil
}

func (a *Agent) rules(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	a.mu.Lock()
	entry, ok := a.cache[origin]
	a.mu.Unlock()
	if ok && time.Since(entry.fetched) < a.ttl {
		return entry.rules, nil
	}

	robotsURL := origin + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.storeFailOpen(origin)
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		a.storeFailOpen(origin)
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		a.storeFailOpen(origin)
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	a.mu.Lock()
	a.cache[origin] = cacheEntry{fetched: time.Now(), rules: data}
	a.mu.Unlock()
	return data, nil
}

// storeFailOpen caches an allow-all entry so a broken origin is probed at
// most once per TTL.
func (a *Agent) storeFailOpen(origin string) {
	a.mu.Lock()
	a.cache[origin] = cacheEntry{fetched: time.Now(), rules: nil}
	a.mu.Unlock()
}
