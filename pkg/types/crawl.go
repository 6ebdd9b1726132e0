package types

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ScopeKind bounds which discovered links are eligible for the frontier.
type ScopeKind string

const (
	// ScopePage restricts the crawl to the seed URL itself, with a single
	// drill-down pass into detail pages when the seed yields no PDFs.
	ScopePage ScopeKind = "page"
	// ScopeHost restricts the crawl to URLs whose host equals the seed host.
	ScopeHost ScopeKind = "host"
	// ScopeDomain restricts the crawl to the seed's registered domain,
	// accepting any subdomain.
	ScopeDomain ScopeKind = "domain"
)

// ParseScopeKind validates a scope string from config or flags.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch ScopeKind(s) {
	case ScopePage, ScopeHost, ScopeDomain:
		return ScopeKind(s), nil
	default:
		return "", fmt.Errorf("unsupported scope %q (want page, host, or domain)", s)
	}
}

// RenderMode selects the fetch strategy for each page.
type RenderMode string

const (
	// RenderAuto fetches statically and re-fetches through the renderer when
	// the body looks like a script-rendered shell.
	RenderAuto RenderMode = "auto"
	// RenderAlways fetches every page through the headless renderer.
	RenderAlways RenderMode = "always"
	// RenderNever fetches statically only.
	RenderNever RenderMode = "never"
)

// ParseRenderMode validates a render mode string from config or flags.
func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(s) {
	case RenderAuto, RenderAlways, RenderNever:
		return RenderMode(s), nil
	default:
		return "", fmt.Errorf("unsupported render mode %q (want auto, always, or never)", s)
	}
}

// Signal identifies where in the page a link or PDF candidate was discovered.
type Signal string

const (
	SignalAnchor      Signal = "anchor"
	SignalEmbed       Signal = "embed"
	SignalObject      Signal = "object"
	SignalIframe      Signal = "iframe"
	SignalMetaRefresh Signal = "meta-refresh"
	SignalRegexText   Signal = "regex-text"
	SignalRegexScript Signal = "regex-script"
)

// VerifyMethod records which check confirmed a candidate as a real PDF.
type VerifyMethod string

const (
	VerifyContentType        VerifyMethod = "content-type"
	VerifyContentDisposition VerifyMethod = "content-disposition"
	VerifyMagicBytes         VerifyMethod = "magic-bytes"
)

// Page represents fetched content.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	Headers         http.Header
	FetchedAt       time.Time
	Rendered        bool
	ResponseLatency time.Duration
}

// Link is a URL discovered on a page together with its discovery signal.
type Link struct {
	URL    *url.URL
	Signal Signal
	// Text is the visible anchor text, when the signal is an anchor.
	Text string
	// FilenameHint carries an explicit filename declared by the markup,
	// such as an anchor download attribute.
	FilenameHint string
}

// PdfCandidate is a link that looks like it serves a PDF.
type PdfCandidate struct {
	URL          *url.URL
	Signal       Signal
	FilenameHint string
}

// VerifiedPdf is a candidate whose content has been confirmed as a PDF.
// Body is the download stream and must be closed by the consumer.
type VerifiedPdf struct {
	Candidate     PdfCandidate
	Method        VerifyMethod
	FilenameHint  string
	ContentLength int64
	Body          io.ReadCloser
}
