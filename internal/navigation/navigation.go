// Package navigation moves the session from the dashboard to the filtered
// list of unread bills.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/consent"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/datefilter"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/pagestate"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

// Listing is what the dashboard showed. The listing step fills it in and the
// download step reads it.
type Listing struct {
	Cards int
}

// HasBills reports whether the dashboard showed any bill card. A nil Listing
// means nothing is known, which counts as bills being there.
func (l *Listing) HasBills() bool {
	return l == nil || l.Cards > 0
}

// Step opens the dashboard, counts the new bill cards and then opens the
// bill list with the largest page size.
type Step struct {
	BaseURL      string
	DashboardURL string

	// Since overrides the lookback start when set.
	Since time.Time
	// Now defaults to time.Now.
	Now func() time.Time

	// Listing, when set, receives the dashboard result.
	Listing *Listing

	Consent  *consent.Handler
	Prober   *probe.Prober
	Table    *locator.Table
	Timeouts config.Timeouts
	Stats    *report.Stats
	Logger   *slog.Logger
}

// Name implements pipeline.Step.
func (s *Step) Name() string { return "listing" }

// Attempt runs the dashboard phase and then the bill list phase. An empty
// dashboard is not a failure: it is recorded in Stats and the run goes on.
func (s *Step) Attempt(ctx context.Context, page browser.Page) bool {
	if err := s.home(ctx, page); err != nil {
		s.fail("dashboard", err)
		return false
	}
	if err := s.billList(ctx, page); err != nil {
		s.fail("bill list", err)
		return false
	}
	return true
}

func (s *Step) home(ctx context.Context, page browser.Page) error {
	state, err := pagestate.Read(ctx, page, s.Table.Titles)
	if err != nil {
		return err
	}
	if state.OnDashboard {
		s.Logger.Debug("already on the dashboard")
	} else if err := page.Navigate(ctx, s.DashboardURL); err != nil {
		return fmt.Errorf("load %s: %w", s.DashboardURL, err)
	}

	outcome, err := s.Consent.Accept(ctx, page)
	if err != nil {
		return fmt.Errorf("cookie banner: %w", err)
	}
	if !outcome.OK() {
		return errors.New("could not accept cookies")
	}

	cards, err := s.billCards(ctx, page)
	if err != nil {
		return err
	}
	s.Stats.SetBills(cards)
	if s.Listing != nil {
		s.Listing.Cards = cards
	}
	if cards == 0 {
		s.Logger.Info("no new bills available")
	} else {
		s.Logger.Info("there are some bills that require downloading", "cards", cards)
	}
	return nil
}

// billCards counts the cards in the bills container. A container or card
// that does not render in time counts as zero.
func (s *Step) billCards(ctx context.Context, page browser.Page) (int, error) {
	container, err := s.Prober.Present(ctx, page, s.Table.Get(locator.BillsContainer), s.Timeouts.BillsContainer)
	if browser.IsTimeout(err) {
		s.Logger.Info("bills container not found", "error", err)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	card := s.Table.Get(locator.BillCard)
	if _, err := s.Prober.Present(ctx, container, card, s.Timeouts.BillCard); browser.IsTimeout(err) {
		s.Logger.Info("could not obtain the bill cards", "error", err)
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	cards, err := container.Find(ctx, card)
	if err != nil {
		return 0, fmt.Errorf("count bill cards: %w", err)
	}
	return len(cards), nil
}

func (s *Step) billList(ctx context.Context, page browser.Page) error {
	state, err := pagestate.Read(ctx, page, s.Table.Titles)
	if err != nil {
		return err
	}
	if state.OnBillList {
		s.Logger.Info("already on the bill list", "title", state.Title)
		return nil
	}

	start := s.Since
	if start.IsZero() {
		start = datefilter.LookbackStart(s.now())
	}
	url := datefilter.BillListURL(s.BaseURL, s.Table.BillListPath, start, s.Table.UnreadStatus)
	s.Logger.Info("loading the list of unread bills", "since", datefilter.Format(start))
	if err := page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}

	return s.setPageSize(ctx, page)
}

// setPageSize only fails when the session is gone. Anything else leaves the
// list on its default page size.
func (s *Step) setPageSize(ctx context.Context, page browser.Page) error {
	size := s.Table.PageSizeValue
	sel, err := s.Prober.Present(ctx, page, s.Table.Get(locator.PageSizeSelect), s.Timeouts.PageSize)
	if err == nil {
		err = sel.SelectValue(ctx, size)
	}
	switch {
	case err == nil:
		s.Logger.Debug("page size set", "size", size)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case browser.IsBrowserClosed(err):
		return err
	}

	s.Stats.SetPageSizeDegraded()
	s.Logger.Warn("could not set the bill list to display more elements per page; older bills may not be downloaded",
		"size", size, "error", err)
	return nil
}

func (s *Step) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Step) fail(phase string, err error) {
	s.Logger.Error("listing failed", "phase", phase, "error", err)
	s.Stats.AddError(s.Name(), fmt.Sprintf("%s: %v", phase, err))
}
