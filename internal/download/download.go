// Package download drives the per-bill download menu on the bill list.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/navigation"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

// Step downloads every bill shown on the current list page.
type Step struct {
	// Listing is the dashboard result. Without it, missing controls always
	// fail the step.
	Listing *navigation.Listing

	Prober   *probe.Prober
	Table    *locator.Table
	Timeouts config.Timeouts
	Stats    *report.Stats
	Logger   *slog.Logger
}

// Name implements pipeline.Step.
func (s *Step) Name() string { return "download" }

// Attempt waits for the download controls, takes the set present at that
// moment and runs the download menu for each of them in order. A control
// whose menu does not behave is skipped; only a lost session stops the loop.
func (s *Step) Attempt(ctx context.Context, page browser.Page) bool {
	loc := s.Table.Get(locator.DownloadControl)

	if _, err := s.Prober.Present(ctx, page, loc, s.Timeouts.DownloadControls); err != nil {
		if browser.IsTimeout(err) && !s.Listing.HasBills() {
			s.Logger.Info("nothing to download")
			return true
		}
		s.fail("could not obtain the bill list in time", err)
		return false
	}

	controls, err := page.Find(ctx, loc)
	if err != nil {
		s.fail("could not enumerate download controls", err)
		return false
	}
	s.Stats.SetControlsFound(len(controls))
	s.Logger.Info("download controls found", "count", len(controls))

	for i, control := range controls {
		n := i + 1
		err := s.downloadOne(ctx, page, control)
		switch {
		case err == nil:
		case browser.IsContextCanceled(ctx):
			s.fail("download interrupted", ctx.Err())
			return false
		case browser.IsBrowserClosed(err):
			s.fail(fmt.Sprintf("control %d", n), err)
			return false
		default:
			s.Logger.Warn("skipping download control", "control", n, "error", err)
			s.Stats.AddSkip(n, err.Error())
		}
	}
	return true
}

func (s *Step) downloadOne(ctx context.Context, page browser.Page, control browser.Element) error {
	if err := control.Click(ctx); err != nil {
		return fmt.Errorf("open format menu: %w", err)
	}

	item, err := s.selectFormat(ctx, page)
	if err != nil {
		return err
	}
	if err := item.Click(ctx); err != nil {
		return fmt.Errorf("click %q: %w", s.Table.PDFFormatLabel, err)
	}
	s.Stats.IncrementDownloadsStarted()
	s.Logger.Debug("download started")

	return s.dismissAttachments(ctx, page)
}

// selectFormat returns the first rendered menu item whose label is exactly
// the PDF format label. Similar labels are never picked.
func (s *Step) selectFormat(ctx context.Context, page browser.Page) (browser.Element, error) {
	loc := s.Table.Get(locator.FormatItem)
	if _, err := s.Prober.Visible(ctx, page, loc, s.Timeouts.FormatMenu); err != nil {
		return nil, fmt.Errorf("format menu: %w", err)
	}

	items, err := page.Find(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("format menu: %w", err)
	}
	for _, item := range items {
		text, err := item.Text(ctx)
		if err != nil || strings.TrimSpace(text) != s.Table.PDFFormatLabel {
			continue
		}
		if ok, err := item.Visible(ctx); err == nil && ok {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: format item %q", browser.ErrElementNotFound, s.Table.PDFFormatLabel)
}

// dismissAttachments closes the attachments popup when it shows up. No
// popup within the window is the common case.
func (s *Step) dismissAttachments(ctx context.Context, page browser.Page) error {
	closeBtn, err := s.Prober.Visible(ctx, page, s.Table.Get(locator.AttachmentsClose), s.Timeouts.AttachmentsPopup)
	if browser.IsTimeout(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("attachments popup: %w", err)
	}

	s.Logger.Info("attachments popup detected, closing it")
	if err := closeBtn.HoverClick(ctx); err != nil {
		return fmt.Errorf("close attachments popup: %w", err)
	}
	s.Stats.IncrementPopupsClosed()
	return nil
}

func (s *Step) fail(msg string, err error) {
	s.Logger.Error(msg, "error", err)
	s.Stats.AddError(s.Name(), fmt.Sprintf("%s: %v", msg, err))
}
