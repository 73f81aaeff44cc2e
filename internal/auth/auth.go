// Package auth signs in to AziendaOnWeb through its login form.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/pagestate"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

// Step loads the site and logs in unless the session already is.
type Step struct {
	URL      string
	Username string
	Password string

	Prober   *probe.Prober
	Table    *locator.Table
	Timeouts config.Timeouts
	Stats    *report.Stats
	Logger   *slog.Logger
}

// Name implements pipeline.Step.
func (s *Step) Name() string { return "login" }

// Attempt loads URL and, when the title does not show an authenticated
// session, fills in and submits the login form. It returns false when the
// form or the post-login page does not show up in time.
func (s *Step) Attempt(ctx context.Context, page browser.Page) bool {
	if err := page.Navigate(ctx, s.URL); err != nil {
		s.fail("could not load the login page", err)
		return false
	}

	state, err := pagestate.Read(ctx, page, s.Table.Titles)
	if err != nil {
		s.fail("could not read the page title", err)
		return false
	}
	if state.Authenticated {
		s.Logger.Info("already logged in", "title", state.Title)
		return true
	}

	if err := s.submit(ctx, page); err != nil {
		s.fail("could not login", err)
		return false
	}

	s.Logger.Info("login successful")
	return true
}

func (s *Step) submit(ctx context.Context, page browser.Page) error {
	user, err := s.Prober.Present(ctx, page, s.Table.Get(locator.UsernameField), s.Timeouts.LoginPage)
	if err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	pass, err := s.Prober.Present(ctx, page, s.Table.Get(locator.PasswordField), s.Timeouts.LoginField)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	submit, err := s.Prober.Present(ctx, page, s.Table.Get(locator.SubmitButton), s.Timeouts.LoginField)
	if err != nil {
		return fmt.Errorf("submit button: %w", err)
	}

	if err := s.typeInto(ctx, user, s.Username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := s.typeInto(ctx, pass, s.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	s.Logger.Debug("login form submitted", "username", s.Username)

	if _, err := s.Prober.Present(ctx, page, s.Table.Get(locator.PostLoginMarker), s.Timeouts.PostLogin); err != nil {
		return fmt.Errorf("post-login page: %w", err)
	}
	return nil
}

// typeInto types text within the LoginField window. A field that is still
// not taking input when the window closes is not interactable.
func (s *Step) typeInto(ctx context.Context, field browser.Element, text string) error {
	typeCtx, cancel := context.WithTimeout(ctx, s.Timeouts.LoginField)
	defer cancel()

	err := field.Type(typeCtx, text)
	if err != nil && ctx.Err() == nil && typeCtx.Err() != nil {
		return fmt.Errorf("%w: no input accepted within %s", browser.ErrNotInteractable, s.Timeouts.LoginField)
	}
	return err
}

func (s *Step) fail(msg string, err error) {
	s.Logger.Error(msg, "error", err)
	s.Stats.AddError(s.Name(), fmt.Sprintf("%s: %v", msg, err))
}
