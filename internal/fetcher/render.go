package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"pdfcrawler/internal/config"
	"pdfcrawler/pkg/types"
)

// ErrRenderTimeout marks renders that hit the configured render deadline.
var ErrRenderTimeout = errors.New("render timed out")

// Renderer executes headless Chrome sessions through chromedp. The browser
// process is allocated under the crawl's context: cancelling the crawl
// cancels the allocator, which terminates the child browser process. One
// termination entry point owns the whole session tree.
type Renderer struct {
	opts      config.RenderingConfig
	userAgent string
	jar       http.CookieJar
	logger    *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewRenderer prepares a renderer owned by the given crawl context. Chrome
// itself is not launched until the first Render call.
func NewRenderer(crawlCtx context.Context, cfg config.RenderingConfig, userAgent string, jar http.CookieJar, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}

	headless := !cfg.DisableHeadless
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(crawlCtx, execOpts...)

	return &Renderer{
		opts:        cfg,
		userAgent:   userAgent,
		jar:         jar,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// Close tears down the browser session tree.
func (r *Renderer) Close() {
	if r != nil && r.allocCancel != nil {
		r.allocCancel()
	}
}

// Render navigates to the target URL, waits for the page to settle, and
// returns the resulting DOM serialization. Session cookies accumulated by
// the browser are exported into the shared jar so subsequent static fetches
// continue the rendered session.
func (r *Renderer) Render(ctx context.Context, target *url.URL) (*types.Page, error) {
	if target == nil {
		return nil, errors.New("render target is nil")
	}

	timeout := r.opts.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	chromeCtx, chromeCancel := chromedp.NewContext(r.allocCtx)
	defer chromeCancel()

	runCtx, runCancel := context.WithTimeout(chromeCtx, timeout)
	defer runCancel()

	// The engine's cancellation must interrupt an in-flight render.
	stop := context.AfterFunc(ctx, chromeCancel)
	defer stop()

	start := time.Now()
	var html string
	var finalURL string
	var cookies []*network.Cookie

	actions := []chromedp.Action{
		chromedp.Navigate(target.String()),
	}
	if r.opts.WaitForDOMReady {
		actions = append(actions,
			waitForDocumentReady(),
			chromedp.Sleep(250*time.Millisecond),
		)
	} else {
		delay := r.opts.CaptureDelay.Duration
		if delay <= 0 {
			delay = 1500 * time.Millisecond
		}
		actions = append(actions, chromedp.Sleep(delay))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("render %s: %w", target, ErrRenderTimeout)
		}
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	r.exportCookies(target, cookies)

	parsedFinal := target
	if finalURL != "" {
		if u, err := url.Parse(finalURL); err == nil {
			parsedFinal = u
		}
	}

	latency := time.Since(start)
	r.logger.Debug("render complete",
		"url", target.String(),
		"final_url", parsedFinal.String(),
		"latency_ms", latency.Milliseconds(),
		"html_bytes", len(html),
		"cookies", len(cookies),
	)

	return &types.Page{
		URL:             target,
		FinalURL:        parsedFinal,
		Body:            []byte(html),
		ContentType:     "text/html; charset=utf-8",
		StatusCode:      http.StatusOK,
		FetchedAt:       time.Now(),
		Rendered:        true,
		ResponseLatency: latency,
	}, nil
}

// exportCookies merges the browser session's cookies into the crawl jar so
// static fetches on the same origin behave as a continuation of the
// rendered session.
func (r *Renderer) exportCookies(target *url.URL, cookies []*network.Cookie) {
	if r.jar == nil || len(cookies) == 0 {
		return
	}
	converted := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		converted = append(converted, cookie)
	}
	r.jar.SetCookies(target, converted)
}

func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
