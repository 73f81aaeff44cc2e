// Package pipeline runs the download steps in order against one browser
// session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

// Step is one stage of the run. Attempt returns false to stop the run; the
// reason is reported by the step itself.
type Step interface {
	Name() string
	Attempt(ctx context.Context, page browser.Page) bool
}

// Session is a page that owns the underlying browser.
type Session interface {
	browser.Page
	Close()
}

// Run attempts steps in order and stops at the first one that returns
// false. Every step that ran is recorded in stats.
func Run(ctx context.Context, page browser.Page, steps []Step, stats *report.Stats, logger *slog.Logger) bool {
	for i, step := range steps {
		if browser.IsContextCanceled(ctx) {
			logger.Warn("run interrupted", "before", step.Name(), "error", ctx.Err())
			stats.AddError(step.Name(), fmt.Sprintf("not started: %v", ctx.Err()))
			return false
		}

		logger.Info("starting step", "step", step.Name(), "index", i+1, "of", len(steps))
		start := time.Now()
		ok := step.Attempt(ctx, page)
		elapsed := time.Since(start)
		stats.RecordStep(step.Name(), ok, elapsed)

		if !ok {
			logger.Error("step failed, stopping", "step", step.Name(), "elapsed", elapsed.Round(time.Millisecond))
			return false
		}
		logger.Info("step done", "step", step.Name(), "elapsed", elapsed.Round(time.Millisecond))
	}
	return true
}

// Execute opens a session, builds the steps around it, runs them and closes
// the session exactly once, whatever the outcome. The error is only set when
// the session could not be opened.
func Execute(
	ctx context.Context,
	open func(context.Context) (Session, error),
	build func(browser.Page) []Step,
	stats *report.Stats,
	logger *slog.Logger,
) (bool, error) {
	session, err := open(ctx)
	if err != nil {
		return false, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		session.Close()
		logger.Debug("browser session closed")
	}()

	ok := Run(ctx, session, build(session), stats, logger)
	stats.Finish()
	return ok, nil
}
