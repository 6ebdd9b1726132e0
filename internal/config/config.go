package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run one crawl.
type Config struct {
	Crawl     CrawlConfig     `yaml:"crawl"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Rendering RenderingConfig `yaml:"rendering"`
	Robots    RobotsConfig    `yaml:"robots"`
	Extract   ExtractConfig   `yaml:"extract"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CrawlConfig controls the frontier, scope, budgets, and pacing.
type CrawlConfig struct {
	Seed          string            `yaml:"seed"`
	Scope         string            `yaml:"scope"`
	MaxPages      int               `yaml:"max_pages"`
	MaxPDFs       int               `yaml:"max_pdfs"`
	Delay         Duration          `yaml:"delay"`
	DelayJitter   float64           `yaml:"delay_jitter"`
	UserAgent     string            `yaml:"user_agent"`
	Headers       map[string]string `yaml:"headers"`
	RespectRobots bool              `yaml:"respect_robots"`
}

// FetchConfig controls static HTTP retrieval behaviour.
type FetchConfig struct {
	RequestTimeout Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	MaxRedirects   int      `yaml:"max_redirects"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryBackoff   Duration `yaml:"retry_backoff"`
	ProxyURL       string   `yaml:"proxy_url"`
}

// RenderingConfig controls the headless-browser fetch strategy.
type RenderingConfig struct {
	Mode            string          `yaml:"mode"`
	Timeout         Duration        `yaml:"timeout"`
	WaitForDOMReady bool            `yaml:"wait_for_dom_ready"`
	CaptureDelay    Duration        `yaml:"capture_delay"`
	DisableHeadless bool            `yaml:"disable_headless"`
	Heuristic       HeuristicConfig `yaml:"heuristic"`
}

// HeuristicConfig tunes the "looks like it needs rendering" predicate used
// by the auto render mode. Thresholds are policy, not fixed behaviour.
type HeuristicConfig struct {
	MinTextBytes int      `yaml:"min_text_bytes"`
	MinLinks     int      `yaml:"min_links"`
	MinBodyBytes int      `yaml:"min_body_bytes"`
	ShellMarkers []string `yaml:"shell_markers"`
}

// RobotsConfig configures robots.txt handling.
type RobotsConfig struct {
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// ExtractConfig tunes link extraction and PDF candidate classification.
type ExtractConfig struct {
	MaxLinksPerPage int `yaml:"max_links_per_page"`
	// EndpointPatterns are regular expressions matched against a link's
	// path to catch extensionless document-serving endpoints.
	EndpointPatterns []string `yaml:"endpoint_patterns"`
	// DetailLinkPatterns identify per-item detail pages for the page-scope
	// drill-down pass; matched against anchor text and URL.
	DetailLinkPatterns []string `yaml:"detail_link_patterns"`
}

// OutputConfig controls where verified PDFs are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			Scope:         "host",
			MaxPages:      1000,
			MaxPDFs:       100,
			Delay:         DurationFrom(time.Second),
			DelayJitter:   0,
			UserAgent:     "pdfcrawler-bot/1.0",
			Headers:       map[string]string{},
			RespectRobots: true,
		},
		Fetch: FetchConfig{
			RequestTimeout: DurationFrom(30 * time.Second),
			MaxBodyBytes:   6 * 1024 * 1024,
			MaxRedirects:   10,
			MaxRetries:     2,
			RetryBackoff:   DurationFrom(500 * time.Millisecond),
		},
		Rendering: RenderingConfig{
			Mode:            "auto",
			Timeout:         DurationFrom(60 * time.Second),
			WaitForDOMReady: true,
			CaptureDelay:    DurationFrom(2 * time.Second),
			Heuristic: HeuristicConfig{
				MinTextBytes: 200,
				MinLinks:     1,
				MinBodyBytes: 2048,
			},
		},
		Robots: RobotsConfig{
			UserAgent: "pdfcrawler-bot/1.0",
			CacheTTL:  DurationFrom(30 * time.Minute),
		},
		Extract: ExtractConfig{
			MaxLinksPerPage: 500,
			EndpointPatterns: []string{
				`(?i)/(?:download|getfile|get_file|getdocument|get_document|docview|viewdoc|fileservlet|filedownload)[^/]*$`,
			},
			DetailLinkPatterns: []string{
				`(?i)\b(?:view|details?|more|open|read|document|notice|download)\b`,
				`(?i)(?:detail|view|item|record|notice|article)`,
			},
		},
		Output: OutputConfig{
			Directory: "downloaded_pdfs",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: false,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the crawler configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.Seed) == "" {
		return errors.New("crawl.seed must be set")
	}
	switch c.Crawl.Scope {
	case "page", "host", "domain":
	default:
		return fmt.Errorf("crawl.scope must be page, host, or domain (got %q)", c.Crawl.Scope)
	}
	switch c.Rendering.Mode {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("rendering.mode must be auto, always, or never (got %q)", c.Rendering.Mode)
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0 (got %d)", c.Crawl.MaxPages)
	}
	if c.Crawl.MaxPDFs <= 0 {
		return fmt.Errorf("crawl.max_pdfs must be > 0 (got %d)", c.Crawl.MaxPDFs)
	}
	if c.Crawl.Delay.Duration < 0 {
		return fmt.Errorf("crawl.delay must be >= 0 (got %s)", c.Crawl.Delay)
	}
	if c.Crawl.DelayJitter < 0 || c.Crawl.DelayJitter > 1 {
		return fmt.Errorf("crawl.delay_jitter must be in [0,1] (got %g)", c.Crawl.DelayJitter)
	}
	if strings.TrimSpace(c.Crawl.UserAgent) == "" {
		return errors.New("crawl.user_agent must be set")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if c.Fetch.MaxRedirects <= 0 {
		return fmt.Errorf("fetch.max_redirects must be > 0 (got %d)", c.Fetch.MaxRedirects)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0 (got %d)", c.Fetch.MaxRetries)
	}
	if c.Crawl.RespectRobots && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set when crawl.respect_robots is true")
	}
	if strings.TrimSpace(c.Output.Directory) == "" {
		return errors.New("output.directory must be set")
	}
	return nil
}

// Normalise trims string fields and fills derived defaults.
func (c *Config) Normalise() {
	c.Crawl.Seed = strings.TrimSpace(c.Crawl.Seed)
	if c.Crawl.Seed != "" && !strings.Contains(c.Crawl.Seed, "://") {
		c.Crawl.Seed = "https://" + c.Crawl.Seed
	}
	c.Crawl.Scope = strings.ToLower(strings.TrimSpace(c.Crawl.Scope))
	c.Rendering.Mode = strings.ToLower(strings.TrimSpace(c.Rendering.Mode))
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	if c.Robots.UserAgent == "" {
		c.Robots.UserAgent = c.Crawl.UserAgent
	}
	c.Output.Directory = strings.TrimSpace(c.Output.Directory)
	if c.Crawl.Headers == nil {
		c.Crawl.Headers = map[string]string{}
	}
}
