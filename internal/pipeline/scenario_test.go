package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/auth"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser/browsertest"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/consent"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/download"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/logging"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/navigation"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/pipeline"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

type session struct {
	*browsertest.Page
	closed int
}

func (s *session) Close() { s.closed++ }

func fastTimeouts() config.Timeouts {
	tm := config.DefaultTimeouts()
	tm.Poll = time.Millisecond
	tm.LoginPage = 20 * time.Millisecond
	tm.LoginField = 5 * time.Millisecond
	tm.PostLogin = 20 * time.Millisecond
	tm.ConsentDetect = 5 * time.Millisecond
	tm.ConsentControl = 5 * time.Millisecond
	tm.ConsentRecheck = 3 * time.Millisecond
	tm.BillsContainer = 20 * time.Millisecond
	tm.BillCard = 10 * time.Millisecond
	tm.PageSize = 20 * time.Millisecond
	tm.DownloadControls = 20 * time.Millisecond
	tm.FormatMenu = 5 * time.Millisecond
	tm.AttachmentsPopup = 5 * time.Millisecond
	return tm
}

func buildSteps(cfg *config.Config, tbl *locator.Table, stats *report.Stats, now time.Time) []pipeline.Step {
	logger := logging.Discard()
	prober := probe.New(cfg.Timeouts.Poll, logger)
	listing := &navigation.Listing{}
	return []pipeline.Step{
		&auth.Step{
			URL:      cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Prober:   prober,
			Table:    tbl,
			Timeouts: cfg.Timeouts,
			Stats:    stats,
			Logger:   logger,
		},
		&navigation.Step{
			BaseURL:      cfg.BaseURL,
			DashboardURL: cfg.PageURL(tbl.DashboardPath),
			Now:          func() time.Time { return now },
			Listing:      listing,
			Consent:      &consent.Handler{Prober: prober, Table: tbl, Timeouts: cfg.Timeouts, Logger: logger},
			Prober:       prober,
			Table:        tbl,
			Timeouts:     cfg.Timeouts,
			Stats:        stats,
			Logger:       logger,
		},
		&download.Step{Listing: listing, Prober: prober, Table: tbl, Timeouts: cfg.Timeouts, Stats: stats, Logger: logger},
	}
}

// TestWarmSessionScenario runs every step against a session that is already
// logged in and sitting on the dashboard.
func TestWarmSessionScenario(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Endpoint = "http://selenium:4444"
	cfg.Username = "mario"
	cfg.Password = "hunter2"
	cfg.Timeouts = fastTimeouts()
	tbl := locator.Default()
	stats := report.New()
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	page := browsertest.NewPage("Impresa - AziendaOnWeb")
	page.Put(tbl.Get(locator.BillsContainer), browsertest.NewElement("bills").
		WithChildren(tbl.Get(locator.BillCard), browsertest.NewElement("card-1"), browsertest.NewElement("card-2")))

	closeLoc := tbl.Get(locator.AttachmentsClose)
	closeBtn := browsertest.NewElement("close")
	closeBtn.OnClick = func() { page.Remove(closeLoc) }

	pdfClicks := 0
	pdf := browsertest.NewElement("pdf").WithText("PDF elettronico")
	pdf.OnClick = func() {
		pdfClicks++
		if pdfClicks == 2 {
			page.Put(closeLoc, closeBtn)
		}
	}

	page.OnNavigate = func(p *browsertest.Page, url string) {
		if !strings.Contains(url, tbl.BillListPath) {
			return
		}
		p.SetTitle("Elenco documenti ricevuti - AziendaOnWeb")
		p.Put(tbl.Get(locator.PageSizeSelect), browsertest.NewElement("page-size").WithOptions("10", "1000"))
		p.Put(tbl.Get(locator.DownloadControl), browsertest.NewElement("control-1"), browsertest.NewElement("control-2"))
		p.Put(tbl.Get(locator.FormatItem), browsertest.NewElement("xml").WithText("XML"), pdf)
	}

	sess := &session{Page: page}
	ok, err := pipeline.Execute(context.Background(),
		func(context.Context) (pipeline.Session, error) { return sess, nil },
		func(browser.Page) []pipeline.Step { return buildSteps(cfg, tbl, stats, now) },
		stats, logging.Discard())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, sess.closed)

	listURL := fmt.Sprintf("%sfatturazione/documento-vendita-ricevuto?dataDa=2024-02-01&statoLettura=2", cfg.BaseURL)
	assert.Equal(t, []string{
		"navigate " + cfg.BaseURL,
		"navigate " + listURL,
		"select page-size 1000",
		"click control-1", "click pdf",
		"click control-2", "click pdf",
		"hoverclick close",
	}, page.Trace())

	assert.Equal(t, 2, stats.BillCards)
	assert.Equal(t, 2, stats.ControlsFound)
	assert.Equal(t, 2, stats.DownloadsStarted)
	assert.Equal(t, 1, stats.PopupsClosed)
	assert.Empty(t, stats.Skipped)
	assert.Empty(t, stats.Errors)
	assert.Len(t, stats.Steps, 3)
}

func TestColdSessionHaltsOnStuckBanner(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Username = "mario"
	cfg.Password = "hunter2"
	cfg.Timeouts = fastTimeouts()
	tbl := locator.Default()
	stats := report.New()

	page := browsertest.NewPage("Accedi")
	submit := browsertest.NewElement("submit")
	submit.OnClick = func() {
		page.SetTitle("Impresa - AziendaOnWeb")
		page.Put(tbl.Get(locator.PostLoginMarker), browsertest.NewElement("bills"))
		page.Put(tbl.Get(locator.ConsentBanner), browsertest.NewElement("banner"))
	}
	page.Put(tbl.Get(locator.UsernameField), browsertest.NewElement("username"))
	page.Put(tbl.Get(locator.PasswordField), browsertest.NewElement("password"))
	page.Put(tbl.Get(locator.SubmitButton), submit)

	sess := &session{Page: page}
	ok, err := pipeline.Execute(context.Background(),
		func(context.Context) (pipeline.Session, error) { return sess, nil },
		func(browser.Page) []pipeline.Step { return buildSteps(cfg, tbl, stats, time.Now()) },
		stats, logging.Discard())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, sess.closed)
	require.Len(t, stats.Steps, 2)
	assert.True(t, stats.Steps[0].OK)
	assert.False(t, stats.Steps[1].OK)
	assert.Equal(t, "listing", stats.Steps[1].Name)
}
