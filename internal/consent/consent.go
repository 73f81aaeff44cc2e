// Package consent dismisses the cookie consent banner that can cover the
// dashboard.
package consent

import (
	"context"
	"log/slog"
	"time"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
)

// Outcome is how an accept attempt ended.
type Outcome int

const (
	// Absent: the banner never showed up.
	Absent Outcome = iota
	// Dismissed: the accept control was clicked and the banner went away.
	Dismissed
	// Resolved: no usable accept control, but the banner was gone on re-probe.
	Resolved
	// Stuck: the banner is still there after the attempt.
	Stuck
)

func (o Outcome) String() string {
	switch o {
	case Absent:
		return "absent"
	case Dismissed:
		return "dismissed"
	case Resolved:
		return "resolved"
	case Stuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// OK reports whether the page is free of the banner.
func (o Outcome) OK() bool {
	return o != Stuck
}

// Handler detects and accepts the consent banner.
type Handler struct {
	Prober   *probe.Prober
	Table    *locator.Table
	Timeouts config.Timeouts
	Logger   *slog.Logger
}

// BannerVisible probes for the banner for up to timeout. The error is only
// set when the session itself failed; a banner that does not show up is
// (false, nil).
func (h *Handler) BannerVisible(ctx context.Context, page browser.Page, timeout time.Duration) (bool, error) {
	_, err := h.Prober.Present(ctx, page, h.Table.Get(locator.ConsentBanner), timeout)
	switch {
	case err == nil:
		return true, nil
	case browser.IsTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

// Accept makes sure the banner is gone, clicking its accept control when
// needed. Stuck is the only outcome that should stop the caller.
func (h *Handler) Accept(ctx context.Context, page browser.Page) (Outcome, error) {
	visible, err := h.BannerVisible(ctx, page, h.Timeouts.ConsentDetect)
	if err != nil {
		return Stuck, err
	}
	if !visible {
		h.Logger.Debug("no cookie banner")
		return Absent, nil
	}

	clicked := false
	button, err := h.Prober.Present(ctx, page, h.Table.Get(locator.ConsentAccept), h.Timeouts.ConsentControl)
	switch {
	case err == nil:
		if cerr := button.Click(ctx); cerr != nil {
			h.Logger.Warn("could not click the cookie accept button", "error", cerr)
		} else {
			clicked = true
		}
	case browser.IsTimeout(err):
		h.Logger.Info("cookies not accepted: accept button not found")
	default:
		return Stuck, err
	}

	still, err := h.BannerVisible(ctx, page, h.Timeouts.ConsentRecheck)
	if err != nil {
		return Stuck, err
	}

	switch {
	case clicked && !still:
		h.Logger.Info("cookies accepted")
		return Dismissed, nil
	case clicked:
		h.Logger.Warn("cookies accepted, but the banner is still there")
		return Stuck, nil
	case !still:
		h.Logger.Info("no cookie banner left after all")
		return Resolved, nil
	default:
		h.Logger.Warn("cookie banner is still there")
		return Stuck, nil
	}
}
