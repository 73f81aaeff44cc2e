// Package pagestate classifies the live document by its title.
//
// A State is always derived from the current document and never kept across
// navigations.
package pagestate

import (
	"context"
	"strings"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

// State is what the title says about the current page.
type State struct {
	Title         string
	Authenticated bool
	OnDashboard   bool
	OnBillList    bool
}

// Classify derives a State from a document title.
func Classify(title string, titles locator.Titles) State {
	return State{
		Title:         title,
		Authenticated: containsAll(title, titles.Authenticated),
		OnDashboard:   containsAll(title, titles.Dashboard),
		OnBillList:    containsAll(title, titles.BillList),
	}
}

// Read classifies the page's current title.
func Read(ctx context.Context, page browser.Page, titles locator.Titles) (State, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return State{}, err
	}
	return Classify(title, titles), nil
}

// containsAll is false for an empty fragment list, so an unconfigured
// marker never matches.
func containsAll(s string, fragments []string) bool {
	if len(fragments) == 0 {
		return false
	}
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}
