package fetcher

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pdfcrawler/internal/config"
)

// RenderPredicate decides whether a statically fetched body looks like a
// script-rendered shell that should be re-fetched through the renderer.
// It is pure over the body so thresholds can be tuned and tested
// independently of the fetch orchestration.
type RenderPredicate func(body []byte) bool

var defaultShellMarkers = []string{
	"__NEXT_DATA__",
	"data-reactroot",
	"ng-version=",
	"id=\"root\"",
	"id=\"app\"",
	"window.__NUXT__",
}

// NewRenderPredicate builds the default predicate from config thresholds.
// A body needs rendering when it carries a known JS-framework shell marker
// with little visible content, or when a sufficiently large body exposes
// almost no text and no links.
func NewRenderPredicate(cfg config.HeuristicConfig) RenderPredicate {
	minText := cfg.MinTextBytes
	if minText <= 0 {
		minText = 200
	}
	minLinks := cfg.MinLinks
	if minLinks <= 0 {
		minLinks = 1
	}
	minBody := cfg.MinBodyBytes
	if minBody <= 0 {
		minBody = 2048
	}
	markers := cfg.ShellMarkers
	if len(markers) == 0 {
		markers = defaultShellMarkers
	}

	return func(body []byte) bool {
		if len(body) == 0 {
			return true
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return false
		}

		// Inline script bundles are not visible content.
		doc.Find("script, style, noscript").Remove()
		text := strings.TrimSpace(doc.Find("body").Text())
		links := doc.Find("a[href]").Length()

		sparse := len(text) < minText && links < minLinks

		if sparse {
			raw := string(body)
			for _, marker := range markers {
				if strings.Contains(raw, marker) {
					return true
				}
			}
			return len(body) >= minBody
		}
		return false
	}
}
