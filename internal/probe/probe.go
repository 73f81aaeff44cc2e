// Package probe implements the bounded readiness polling every step relies on.
//
// A probe asks "does this locator match yet?" at a fixed interval until it
// does or its window elapses. There is no retry beyond the window: callers
// pick the window per call site from the latency they expect.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Prober polls a browser.Scope.
type Prober struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// New returns a Prober polling every interval.
func New(interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{Interval: interval, Logger: logger}
}

// condition filters the current matches down to the one the caller waits for.
type condition func(ctx context.Context, els []browser.Element) (browser.Element, bool)

// Present waits up to timeout for at least one element matching loc and
// returns the first match. It fails with browser.ErrTimeout when the window
// elapses.
func (p *Prober) Present(ctx context.Context, scope browser.Scope, loc locator.Locator, timeout time.Duration) (browser.Element, error) {
	return p.wait(ctx, scope, loc, timeout, "present", func(_ context.Context, els []browser.Element) (browser.Element, bool) {
		if len(els) == 0 {
			return nil, false
		}
		return els[0], true
	})
}

// Visible is Present with the stricter requirement that the match is
// rendered. The first visible match is returned.
func (p *Prober) Visible(ctx context.Context, scope browser.Scope, loc locator.Locator, timeout time.Duration) (browser.Element, error) {
	return p.wait(ctx, scope, loc, timeout, "visible", func(ctx context.Context, els []browser.Element) (browser.Element, bool) {
		for _, el := range els {
			// A node detached between Find and Visible counts as not visible yet.
			if ok, err := el.Visible(ctx); err == nil && ok {
				return el, true
			}
		}
		return nil, false
	})
}

func (p *Prober) wait(ctx context.Context, scope browser.Scope, loc locator.Locator, timeout time.Duration, kind string, cond condition) (browser.Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		els, err := scope.Find(waitCtx, loc)
		switch {
		case err == nil:
			if el, ok := cond(waitCtx, els); ok {
				p.Logger.Debug("probe matched", "locator", loc.String(), "state", kind, "polls", polls)
				return el, nil
			}
		case waitCtx.Err() != nil:
			// The query was cut by the window itself; handled below.
		case browser.IsBrowserClosed(err):
			return nil, err
		default:
			// DOM errors while the document is being replaced are expected.
			p.Logger.Debug("probe query failed", "locator", loc.String(), "error", err)
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s not %s after %s", browser.ErrTimeout, loc, kind, timeout)
		case <-ticker.C:
		}
	}
}
