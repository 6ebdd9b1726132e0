package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"pdfcrawler/pkg/types"
)

// Strategy names the retrieval path that produced a page.
type Strategy string

const (
	StrategyStatic   Strategy = "static"
	StrategyRendered Strategy = "rendered"
)

// Client selects between the static fetcher and the renderer according to
// the configured render mode.
type Client struct {
	static      *HTTPFetcher
	renderer    *Renderer
	mode        types.RenderMode
	needsRender RenderPredicate
	logger      *slog.Logger
}

// NewClient builds a strategy-selecting fetch client. The renderer may be
// nil when the mode is never.
func NewClient(static *HTTPFetcher, renderer *Renderer, mode types.RenderMode, pred RenderPredicate, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		static:      static,
		renderer:    renderer,
		mode:        mode,
		needsRender: pred,
		logger:      logger,
	}
}

// Fetch retrieves the target per the render mode. Under auto, a static
// fetch whose body looks script-rendered is re-fetched through the
// renderer; when that render fails the static content is kept, so a render
// timeout degrades instead of losing the page.
func (c *Client) Fetch(ctx context.Context, target *url.URL) (*types.Page, Strategy, error) {
	switch c.mode {
	case types.RenderNever:
		page, err := c.static.Fetch(ctx, target)
		return page, StrategyStatic, err

	case types.RenderAlways:
		if c.renderer == nil {
			return nil, StrategyRendered, errors.New("render mode is always but no renderer is available")
		}
		page, err := c.renderer.Render(ctx, target)
		return page, StrategyRendered, err

	default: // auto
		page, err := c.static.Fetch(ctx, target)
		if err != nil {
			return nil, StrategyStatic, err
		}
		if c.renderer == nil || c.needsRender == nil {
			return page, StrategyStatic, nil
		}
		if page.StatusCode >= 400 || !c.needsRender(page.Body) {
			return page, StrategyStatic, nil
		}

		rendered, renderErr := c.renderer.Render(ctx, target)
		if renderErr != nil {
			c.logger.Warn("render fallback to static content",
				"url", target.String(), "error", renderErr)
			return page, StrategyStatic, nil
		}
		return rendered, StrategyRendered, nil
	}
}
