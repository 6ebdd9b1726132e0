package robots

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"pdfcrawler/internal/config"
)

func agentFor(t *testing.T, srv *httptest.Server, respect bool) *Agent {
	t.Helper()
	cfg := config.Default().Robots
	cfg.UserAgent = "pdfcrawler-bot"
	return NewAgent(cfg, respect, srv.Client())
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestAllowedHonorsRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "User-agent: pdfcrawler-bot\nDisallow: /private/\nDisallow: /search?\n")
	}))
	defer srv.Close()

	agent := agentFor(t, srv, true)
	ctx := context.Background()

	cases := []struct {
		path string
		want bool
	}{
		{"/public/doc.pdf", true},
		{"/private/doc.pdf", false},
		{"/search?q=budget", false},
		{"/", true},
	}
	for _, tc := range cases {
		allowed, warn := agent.Allowed(ctx, mustURL(t, srv.URL+tc.path))
		if warn != nil {
			t.Errorf("unexpected warning for %s: %v", tc.path, warn)
		}
		if allowed != tc.want {
			t.Errorf("Allowed(%s) = %v, want %v", tc.path, allowed, tc.want)
		}
	}
}

func TestAllowedCachesPerOrigin(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		io.WriteString(w, "User-agent: *\nDisallow:\n")
	}))
	defer srv.Close()

	agent := agentFor(t, srv, true)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if allowed, _ := agent.Allowed(ctx, mustURL(t, srv.URL+"/page")); !allowed {
			t.Fatalf("request %d unexpectedly disallowed", i)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
}

func TestAllowedFailsOpenWithSingleWarning(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := agentFor(t, srv, true)
	ctx := context.Background()
	target := mustURL(t, srv.URL+"/anything")

	allowed, warn := agent.Allowed(ctx, target)
	if !allowed {
		t.Error("first call: fetch failure must fail open")
	}
	if warn == nil {
		t.Error("first call: expected a warning")
	}

	allowed, warn = agent.Allowed(ctx, target)
	if !allowed {
		t.Error("second call: fetch failure must fail open")
	}
	if warn != nil {
		t.Errorf("second call: warning repeated: %v", warn)
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("broken robots.txt fetched %d times, want 1", n)
	}
}

func TestRespectDisabledSkipsFetch(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
	}))
	defer srv.Close()

	agent := agentFor(t, srv, false)
	allowed, warn := agent.Allowed(context.Background(), mustURL(t, srv.URL+"/private/x"))
	if !allowed || warn != nil {
		t.Errorf("Allowed = %v, warn = %v; want true, nil", allowed, warn)
	}
	if n := fetches.Load(); n != 0 {
		t.Errorf("robots.txt fetched %d times with respect disabled", n)
	}
}
