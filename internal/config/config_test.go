package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderMergesOverDefaults(t *testing.T) {
	t.Parallel()

	const doc = `
crawl:
  seed: www.example.go.kr/board
  scope: Domain
  max_pdfs: 25
  delay: 2s
  delay_jitter: 0.3
rendering:
  mode: NEVER
  timeout: 45s
output:
  directory: ./out
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Crawl.Seed != "https://www.example.go.kr/board" {
		t.Errorf("seed = %q, want https:// prefix added", cfg.Crawl.Seed)
	}
	if cfg.Crawl.Scope != "domain" {
		t.Errorf("scope = %q, want lowercased domain", cfg.Crawl.Scope)
	}
	if cfg.Rendering.Mode != "never" {
		t.Errorf("mode = %q", cfg.Rendering.Mode)
	}
	if cfg.Crawl.MaxPDFs != 25 {
		t.Errorf("max_pdfs = %d", cfg.Crawl.MaxPDFs)
	}
	if cfg.Crawl.Delay.Duration != 2*time.Second {
		t.Errorf("delay = %s", cfg.Crawl.Delay)
	}
	// Untouched sections keep their defaults.
	if cfg.Crawl.MaxPages != 1000 {
		t.Errorf("max_pages default lost: %d", cfg.Crawl.MaxPages)
	}
	if cfg.Fetch.MaxBodyBytes != 6*1024*1024 {
		t.Errorf("max_body_bytes default lost: %d", cfg.Fetch.MaxBodyBytes)
	}
	if cfg.Robots.UserAgent != cfg.Crawl.UserAgent {
		t.Errorf("robots user agent = %q, want crawl user agent", cfg.Robots.UserAgent)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("crawl:\n  seed: example.com\n  maximum_pages: 10\n"))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Default()
	valid.Crawl.Seed = "https://example.com"

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing seed", func(c *Config) { c.Crawl.Seed = " " }},
		{"bad scope", func(c *Config) { c.Crawl.Scope = "site" }},
		{"bad render mode", func(c *Config) { c.Rendering.Mode = "sometimes" }},
		{"zero max pages", func(c *Config) { c.Crawl.MaxPages = 0 }},
		{"negative max pdfs", func(c *Config) { c.Crawl.MaxPDFs = -1 }},
		{"negative delay", func(c *Config) { c.Crawl.Delay = DurationFrom(-time.Second) }},
		{"jitter above one", func(c *Config) { c.Crawl.DelayJitter = 1.5 }},
		{"empty user agent", func(c *Config) { c.Crawl.UserAgent = "" }},
		{"empty output dir", func(c *Config) { c.Output.Directory = "" }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestNormaliseSchemelessSeed(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Crawl.Seed = "  example.com/docs  "
	cfg.Normalise()
	if cfg.Crawl.Seed != "https://example.com/docs" {
		t.Errorf("seed = %q", cfg.Crawl.Seed)
	}

	cfg.Crawl.Seed = "http://example.com/docs"
	cfg.Normalise()
	if cfg.Crawl.Seed != "http://example.com/docs" {
		t.Errorf("explicit scheme rewritten: %q", cfg.Crawl.Seed)
	}
}

func TestDurationYAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("crawl:\n  seed: example.com\n  delay: 1500ms\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Crawl.Delay.Duration != 1500*time.Millisecond {
		t.Errorf("delay = %s, want 1.5s", cfg.Crawl.Delay)
	}
}
