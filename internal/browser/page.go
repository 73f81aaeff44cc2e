package browser

import (
	"context"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

// Scope is something elements can be looked up in: the whole page or the
// subtree of an element. Find never waits; it returns what matches right
// now, which may be nothing.
type Scope interface {
	Find(ctx context.Context, loc locator.Locator) ([]Element, error)
}

// Element is a handle to a node located on the current document. Handles go
// stale after navigation.
type Element interface {
	Scope

	Text(ctx context.Context) (string, error)
	// Visible reports whether the node is rendered with a non-empty box.
	Visible(ctx context.Context) (bool, error)

	Click(ctx context.Context) error
	// HoverClick moves the pointer over the node before clicking. Some
	// controls only accept clicks after a hover event.
	HoverClick(ctx context.Context) error
	Type(ctx context.Context, text string) error
	// SelectValue picks the option with the given value on a <select>.
	SelectValue(ctx context.Context, value string) error
}

// Page is the live document of the shared browser session.
type Page interface {
	Scope

	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
}
