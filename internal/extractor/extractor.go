// Package extractor parses fetched content into candidate links and PDF
// candidates using multiple signal sources.
package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pdfcrawler/internal/config"
	"pdfcrawler/internal/urlutil"
	"pdfcrawler/pkg/types"
)

// absoluteURLPattern catches http(s) URLs embedded in visible text and
// inline script blocks.
var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}\\]+`)

// Extractor scans pages for links and classifies PDF candidates.
type Extractor struct {
	maxLinks         int
	endpointPatterns []*regexp.Regexp
	detailPatterns   []*regexp.Regexp
	logger           *slog.Logger
}

// New compiles the configured patterns into an extractor.
func New(cfg config.ExtractConfig, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	maxLinks := cfg.MaxLinksPerPage
	if maxLinks <= 0 {
		maxLinks = 500
	}
	endpoints, err := compilePatterns(cfg.EndpointPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint pattern: %w", err)
	}
	details, err := compilePatterns(cfg.DetailLinkPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid detail link pattern: %w", err)
	}
	return &Extractor{
		maxLinks:         maxLinks,
		endpointPatterns: endpoints,
		detailPatterns:   details,
		logger:           logger,
	}, nil
}

// Links extracts every candidate link from a fetched page. All signal
// sources are scanned on every page: anchors, embed/object/iframe sources,
// meta-refresh targets, and regex sweeps of visible text and inline
// scripts. Results preserve document order and are deduplicated by
// canonical URL, keeping the first discovery signal.
func (e *Extractor) Links(page *types.Page) []types.Link {
	if page == nil || len(page.Body) == 0 {
		return nil
	}
	base := page.FinalURL
	if base == nil {
		base = page.URL
	}
	if base == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Debug("link extraction failed", "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	links := make([]types.Link, 0, 64)
	add := func(raw string, signal types.Signal, text, hint string) bool {
		if len(links) >= e.maxLinks {
			return false
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "mailto:") ||
			strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "#") {
			return true
		}
		u, err := urlutil.Normalize(raw, base)
		if err != nil {
			return true
		}
		key := urlutil.Canonical(u)
		if _, exists := seen[key]; exists {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, types.Link{URL: u, Signal: signal, Text: text, FilenameHint: hint})
		return len(links) < e.maxLinks
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		hint, _ := s.Attr("download")
		return add(href, types.SignalAnchor, strings.TrimSpace(s.Text()), hint)
	})

	doc.Find("embed[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		return add(src, types.SignalEmbed, "", "")
	})
	doc.Find("object[data]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		data, _ := s.Attr("data")
		return add(data, types.SignalObject, "", "")
	})
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		return add(src, types.SignalIframe, "", "")
	})

	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		if target := parseMetaRefreshTarget(content); target != "" {
			return add(target, types.SignalMetaRefresh, "", "")
		}
		return true
	})

	// Regex sweeps catch absolute URLs the DOM walk cannot see: URLs
	// assembled inside inline scripts, and plain text mentions. Scripts are
	// swept first and then removed, because the document text otherwise
	// includes script bodies.
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, raw := range absoluteURLPattern.FindAllString(s.Text(), -1) {
			if !add(trimTrailingPunct(raw), types.SignalRegexScript, "", "") {
				return false
			}
		}
		return true
	})
	doc.Find("script, style").Remove()
	for _, raw := range absoluteURLPattern.FindAllString(doc.Text(), -1) {
		if !add(trimTrailingPunct(raw), types.SignalRegexText, "", "") {
			break
		}
	}

	return links
}

// PdfCandidates classifies links that look like they serve a PDF: a path
// ending in .pdf, or a match against the configured document-serving
// endpoint patterns. The second heuristic exists because many portals serve
// PDFs from extensionless, parameterized endpoints.
func (e *Extractor) PdfCandidates(links []types.Link) []types.PdfCandidate {
	candidates := make([]types.PdfCandidate, 0, 8)
	for _, link := range links {
		if link.URL == nil {
			continue
		}
		if !e.looksLikePdf(link.URL) {
			continue
		}
		candidates = append(candidates, types.PdfCandidate{
			URL:          link.URL,
			Signal:       link.Signal,
			FilenameHint: link.FilenameHint,
		})
	}
	return candidates
}

func (e *Extractor) looksLikePdf(u *url.URL) bool {
	path := u.EscapedPath()
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return true
	}
	for _, pat := range e.endpointPatterns {
		if pat.MatchString(path) {
			return true
		}
	}
	return false
}

// DetailLinks selects anchors on a listing page that look like per-item
// detail pages, for the page-scope drill-down pass. Only anchors on the
// seed's host qualify, and the seed itself is excluded.
func (e *Extractor) DetailLinks(links []types.Link, seed *url.URL) []*url.URL {
	if seed == nil {
		return nil
	}
	seedCanonical := urlutil.Canonical(seed)
	seedHost := seed.Hostname()

	details := make([]*url.URL, 0, 16)
	for _, link := range links {
		if link.Signal != types.SignalAnchor || link.URL == nil {
			continue
		}
		if link.URL.Hostname() != seedHost {
			continue
		}
		if urlutil.Canonical(link.URL) == seedCanonical {
			continue
		}
		if e.matchesDetailPattern(link) {
			details = append(details, link.URL)
		}
	}
	return details
}

func (e *Extractor) matchesDetailPattern(link types.Link) bool {
	for _, pat := range e.detailPatterns {
		if link.Text != "" && pat.MatchString(link.Text) {
			return true
		}
		if pat.MatchString(link.URL.String()) {
			return true
		}
	}
	return false
}

// parseMetaRefreshTarget pulls the url= component out of a meta refresh
// content attribute such as "5; url=https://example.com/next".
func parseMetaRefreshTarget(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) >= 4 && strings.EqualFold(part[:4], "url=") {
			return strings.Trim(strings.TrimSpace(part[4:]), `'"`)
		}
	}
	return ""
}

func trimTrailingPunct(raw string) string {
	return strings.TrimRight(raw, ".,;:!?'\"")
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, pat)
	}
	return compiled, nil
}
