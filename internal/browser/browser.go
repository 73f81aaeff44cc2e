// Package browser wraps the chromedp session the downloader drives, behind
// the small Page/Element capability the steps consume.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

// Config holds browser session options.
type Config struct {
	// Endpoint is the DevTools address of the remote Chrome, e.g.
	// ws://selenium:9222 or http://127.0.0.1:9222.
	Endpoint     string
	WindowWidth  int
	WindowHeight int
	Logger       *slog.Logger
}

// Session owns the remote browser tab. It implements Page.
type Session struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	closeOnce   sync.Once
}

var _ Page = (*Session)(nil)

// New connects to the remote browser and opens a tab sized to the
// configured window.
func New(parent context.Context, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(parent, cfg.Endpoint)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf), chromedp.WithErrorf(logf))

	s := &Session{ctx: ctx, allocCancel: allocCancel, ctxCancel: ctxCancel}

	// The first Run allocates the tab.
	if err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(cfg.WindowWidth), int64(cfg.WindowHeight)),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to browser at %s: %w", cfg.Endpoint, err)
	}
	return s, nil
}

// Close tears the session down. Safe to call more than once; only the first
// call does anything.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.ctxCancel != nil {
			s.ctxCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
}

// ConfigureDownloads sets the download directory on the browser host.
func (s *Session) ConfigureDownloads(ctx context.Context, downloadDir string) error {
	return s.run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Find returns the nodes currently matching loc in the whole document.
func (s *Session) Find(ctx context.Context, loc locator.Locator) ([]Element, error) {
	return s.find(ctx, loc, nil)
}

func (s *Session) find(ctx context.Context, loc locator.Locator, from *cdp.Node) ([]Element, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.By {
	case locator.ByID:
		opts = append(opts, chromedp.ByID)
	case locator.ByCSS:
		opts = append(opts, chromedp.ByQueryAll)
	case locator.ByXPath:
		if from != nil {
			return nil, fmt.Errorf("%s: xpath locators cannot be scoped to an element", loc)
		}
		opts = append(opts, chromedp.BySearch)
	default:
		return nil, fmt.Errorf("%s: unknown locator strategy", loc)
	}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(loc.Value, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{s: s, node: n})
	}
	return elements, nil
}

// run executes actions on the session tab, bounded by ctx. The session
// context carries the chromedp target; ctx carries the caller's deadline
// and cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
