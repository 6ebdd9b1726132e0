// Package crawler orchestrates the frontier, scope filtering, drill-down,
// budgets, pacing, and termination of one PDF discovery crawl.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"pdfcrawler/internal/config"
	"pdfcrawler/internal/download"
	"pdfcrawler/internal/extractor"
	"pdfcrawler/internal/fetcher"
	robotsclient "pdfcrawler/internal/robots"
	"pdfcrawler/internal/urlutil"
	"pdfcrawler/internal/verifier"
	"pdfcrawler/pkg/types"
)

// Crawl is the handle returned to the control surface: an event stream and
// an idempotent cancellation entry point. Cancelling tears down the whole
// execution unit, including any headless browser child process.
type Crawl struct {
	events chan Event
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Events returns the crawl's event stream. It is closed after the Finished
// event once the crawl terminates.
func (c *Crawl) Events() <-chan Event {
	return c.events
}

// Cancel requests cooperative termination. It is idempotent and safe to
// call from any goroutine at any time, including mid-fetch.
func (c *Crawl) Cancel() {
	c.once.Do(c.cancel)
}

// Done is closed once the crawl has fully terminated.
func (c *Crawl) Done() <-chan struct{} {
	return c.done
}

// Engine owns the frontier, visited set, and counters exclusively; nothing
// else touches them, so the frontier loop needs no locking.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	seed  *url.URL
	scope urlutil.Scope

	fetch    *fetcher.Client
	renderer *fetcher.Renderer
	robots   *robotsclient.Agent
	extract  *extractor.Extractor
	verify   *verifier.Verifier
	store    *download.Store
	pacer    *Pacer

	frontier   *Frontier
	visited    map[string]struct{}
	downloaded map[string]struct{}

	maxPages     int
	maxPDFs      int
	pagesVisited int
	pdfsSaved    int

	events chan Event
}

// Start validates the configuration, builds the crawl's execution unit, and
// begins processing in its own goroutine. Setup failures (unparseable seed,
// inaccessible output directory) are returned here, before any fetch.
func Start(cfg config.Config) (*Crawl, error) {
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	seed, err := urlutil.Normalize(cfg.Crawl.Seed, nil)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	scopeKind, err := types.ParseScopeKind(cfg.Crawl.Scope)
	if err != nil {
		return nil, err
	}
	renderMode, err := types.ParseRenderMode(cfg.Rendering.Mode)
	if err != nil {
		return nil, err
	}
	scope, err := urlutil.NewScope(scopeKind, seed)
	if err != nil {
		return nil, fmt.Errorf("derive scope: %w", err)
	}

	store, err := download.NewStore(cfg.Output.Directory, logger)
	if err != nil {
		return nil, err
	}

	jar, err := fetcher.NewCookieJar()
	if err != nil {
		return nil, err
	}
	static, err := fetcher.NewHTTPFetcher(cfg.Fetch, cfg.Crawl, jar)
	if err != nil {
		return nil, err
	}

	extract, err := extractor.New(cfg.Extract, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	var renderer *fetcher.Renderer
	if renderMode != types.RenderNever {
		renderer = fetcher.NewRenderer(ctx, cfg.Rendering, cfg.Crawl.UserAgent, jar, logger)
	}
	client := fetcher.NewClient(static, renderer, renderMode,
		fetcher.NewRenderPredicate(cfg.Rendering.Heuristic), logger)

	engine := &Engine{
		cfg:        cfg,
		logger:     logger,
		seed:       seed,
		scope:      scope,
		fetch:      client,
		renderer:   renderer,
		robots:     robotsclient.NewAgent(cfg.Robots, cfg.Crawl.RespectRobots, static.Client()),
		extract:    extract,
		verify:     verifier.New(static.Client(), cfg.Crawl.UserAgent, logger),
		store:      store,
		pacer:      NewPacer(cfg.Crawl.Delay.Duration, cfg.Crawl.DelayJitter),
		frontier:   NewFrontier(),
		visited:    make(map[string]struct{}),
		downloaded: make(map[string]struct{}),
		maxPages:   cfg.Crawl.MaxPages,
		maxPDFs:    cfg.Crawl.MaxPDFs,
		events:     make(chan Event, 256),
	}

	crawl := &Crawl{
		events: engine.events,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go engine.run(ctx, crawl)
	return crawl, nil
}

// run is the frontier loop: while the frontier is non-empty and every
// budget holds and the crawl is not cancelled, dequeue one entry, pace,
// check robots, fetch, extract, verify, download, and expand.
func (e *Engine) run(ctx context.Context, c *Crawl) {
	defer close(c.done)
	defer close(e.events)
	if e.renderer != nil {
		defer e.renderer.Close()
	}

	e.frontier.Push(Entry{
		URL:       e.seed,
		Canonical: urlutil.Canonical(e.seed),
		Origin:    OriginDirect,
	})
	e.emit(ctx, LogMessage{Text: fmt.Sprintf("crawl started: seed=%s scope=%s", e.seed, e.scope.Kind)})

	reason := ReasonFrontierExhausted
	for {
		if ctx.Err() != nil {
			reason = ReasonCancelled
			break
		}
		if e.pagesVisited >= e.maxPages {
			reason = ReasonMaxPages
			break
		}
		if e.pdfsSaved >= e.maxPDFs {
			reason = ReasonMaxPDFs
			break
		}

		entry, ok := e.frontier.Pop()
		if !ok {
			break
		}
		if _, seen := e.visited[entry.Canonical]; seen {
			continue
		}
		e.visited[entry.Canonical] = struct{}{}

		if err := e.pacer.Wait(ctx); err != nil {
			reason = ReasonCancelled
			break
		}
		e.processEntry(ctx, entry)
	}
	if ctx.Err() != nil {
		reason = ReasonCancelled
	}

	e.logger.Info("crawl finished",
		"reason", string(reason),
		"pages_visited", e.pagesVisited,
		"pdfs_saved", e.pdfsSaved,
	)
	e.emitFinal(Finished{
		PagesVisited: e.pagesVisited,
		PdfsSaved:    e.pdfsSaved,
		Reason:       reason,
	})
}

func (e *Engine) processEntry(ctx context.Context, entry Entry) {
	target := entry.URL

	allowed, warn := e.robots.Allowed(ctx, target)
	if warn != nil {
		e.emit(ctx, Warning{Text: warn.Error()})
	}
	if !allowed {
		e.logger.Info("disallowed by robots.txt", "url", target.String())
		e.emit(ctx, LogMessage{Text: fmt.Sprintf("disallowed by robots.txt, skipping: %s", target)})
		return
	}

	e.pagesVisited++
	e.emit(ctx, LogMessage{Text: fmt.Sprintf("crawling %s (page %d/%d)", target, e.pagesVisited, e.maxPages)})

	page, strategy, err := e.fetch.Fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.emit(ctx, ErrorEvent{URL: target.String(), Kind: classifyFetchError(err), Err: err})
		return
	}
	if page.StatusCode >= 400 {
		e.emit(ctx, ErrorEvent{
			URL:  target.String(),
			Kind: KindFetchError,
			Err:  fmt.Errorf("server returned status %d", page.StatusCode),
		})
		return
	}
	e.logger.Debug("fetched",
		"url", target.String(),
		"strategy", string(strategy),
		"status", page.StatusCode,
		"bytes", len(page.Body),
	)

	links := e.extract.Links(page)
	candidates := e.extract.PdfCandidates(links)
	found := e.handleCandidates(ctx, candidates)

	switch {
	case e.scope.Kind == types.ScopePage && entry.Origin == OriginDirect:
		// The listing->detail pattern: one extra pass, depth one below the
		// seed, only when the seed itself exposed no PDFs.
		if found == 0 {
			e.drillDown(ctx, links)
		}
	case e.scope.Kind == types.ScopePage:
		// Detail pages are never expanded and none of their non-PDF links
		// are enqueued.
	default:
		e.enqueueLinks(entry, links, candidates)
	}
}

// handleCandidates verifies and downloads PDF candidates in extraction
// order, returning how many were confirmed as real PDFs.
func (e *Engine) handleCandidates(ctx context.Context, candidates []types.PdfCandidate) int {
	found := 0
	for _, cand := range candidates {
		if ctx.Err() != nil || e.pdfsSaved >= e.maxPDFs {
			return found
		}

		key := urlutil.Canonical(cand.URL)
		if _, dup := e.downloaded[key]; dup {
			continue
		}
		if !e.inDownloadScope(cand.URL) {
			e.logger.Debug("pdf candidate outside scope", "url", key)
			continue
		}

		verified, err := e.verify.Verify(ctx, cand)
		if err != nil {
			if errors.Is(err, verifier.ErrNotPDF) {
				e.logger.Debug("candidate failed pdf verification", "url", key, "signal", string(cand.Signal))
			} else if ctx.Err() == nil {
				e.emit(ctx, ErrorEvent{URL: key, Kind: KindVerificationFailed, Err: err})
			}
			continue
		}

		found++
		e.emit(ctx, PdfFound{URL: key, Signal: cand.Signal})

		path, size, err := e.store.Save(ctx, verified)
		if err != nil {
			if ctx.Err() == nil {
				e.emit(ctx, ErrorEvent{URL: key, Kind: KindDownloadWriteError, Err: err})
			}
			continue
		}
		e.downloaded[key] = struct{}{}
		if ctx.Err() != nil {
			// Saved to disk, but the crawl is cancelled: suppress the event
			// so no PdfSaved follows a completed Cancel call.
			return found
		}
		e.pdfsSaved++
		e.emit(ctx, PdfSaved{URL: key, Path: path, SizeBytes: size})
	}
	return found
}

// inDownloadScope bounds PDF downloads. Under host and domain scope a PDF
// must share the seed's registered domain; under page scope the documents a
// page links to are the point, wherever they live.
func (e *Engine) inDownloadScope(u *url.URL) bool {
	if e.scope.Kind == types.ScopePage {
		return true
	}
	return e.scope.SameRegisteredDomain(u)
}

// drillDown queues the seed page's detail links for exactly one extra pass.
func (e *Engine) drillDown(ctx context.Context, links []types.Link) {
	details := e.extract.DetailLinks(links, e.seed)
	if len(details) == 0 {
		return
	}
	e.emit(ctx, LogMessage{Text: fmt.Sprintf("no PDFs on seed page, drilling into %d detail pages", len(details))})
	for _, u := range details {
		e.frontier.Push(Entry{
			URL:       u,
			Canonical: urlutil.Canonical(u),
			Depth:     1,
			Origin:    OriginDrilldown,
		})
	}
}

// enqueueLinks pushes newly discovered in-scope navigation links. PDF
// candidates are handled by the verifier path and never become pages.
func (e *Engine) enqueueLinks(entry Entry, links []types.Link, candidates []types.PdfCandidate) {
	isCandidate := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		isCandidate[urlutil.Canonical(cand.URL)] = struct{}{}
	}

	for _, link := range links {
		if link.Signal != types.SignalAnchor && link.Signal != types.SignalMetaRefresh {
			continue
		}
		if link.URL == nil || !e.scope.Contains(link.URL) {
			continue
		}
		key := urlutil.Canonical(link.URL)
		if _, pdf := isCandidate[key]; pdf {
			continue
		}
		if _, seen := e.visited[key]; seen {
			continue
		}
		e.frontier.Push(Entry{
			URL:       link.URL,
			Canonical: key,
			Depth:     entry.Depth + 1,
			Origin:    OriginDirect,
		})
	}
}

// emit delivers an event, preferring delivery but never wedging a cancelled
// crawl on an abandoned consumer.
func (e *Engine) emit(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
		select {
		case e.events <- ev:
		default:
		}
	}
}

// emitFinal sends the Finished event without blocking; the channel close
// that follows signals completion regardless.
func (e *Engine) emitFinal(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event buffer full, dropping final event")
	}
}

func classifyFetchError(err error) ErrorKind {
	switch {
	case errors.Is(err, fetcher.ErrRedirectLoop):
		return KindRedirectLoop
	case errors.Is(err, fetcher.ErrRenderTimeout):
		return KindRenderTimeout
	case errors.Is(err, urlutil.ErrInvalidURL):
		return KindInvalidURL
	default:
		return KindFetchError
	}
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
