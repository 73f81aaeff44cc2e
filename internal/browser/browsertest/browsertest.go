// Package browsertest provides an in-memory Page for exercising steps
// without a browser.
//
// A Page holds elements keyed by locator. Elements can be made to appear only
// after a number of polls, clicks can run hooks that change the page, and
// every interaction is appended to an ordered trace.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

type delayed struct {
	polls    int
	elements []*Element
}

// Page is a scriptable browser.Page.
type Page struct {
	mu       sync.Mutex
	title    string
	elements map[string][]*Element
	pending  map[string]delayed
	vanish   map[string]int
	finds    map[string]int
	trace    []string

	// OnNavigate runs after every navigation, outside the page lock.
	OnNavigate func(p *Page, url string)
	// FindErr, when set, is returned by every page-level Find.
	FindErr error
	// NavigateErr, when set, is returned by Navigate.
	NavigateErr error
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty page with the given title.
func NewPage(title string) *Page {
	return &Page{
		title:    title,
		elements: make(map[string][]*Element),
		pending:  make(map[string]delayed),
		vanish:   make(map[string]int),
		finds:    make(map[string]int),
	}
}

// SetTitle changes the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Put makes els the current matches of loc.
func (p *Page) Put(loc locator.Locator, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range els {
		e.attach(p)
	}
	p.elements[loc.String()] = els
	delete(p.pending, loc.String())
}

// PutAfter makes els match loc only once loc has been polled `polls` times
// without result.
func (p *Page) PutAfter(loc locator.Locator, polls int, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range els {
		e.attach(p)
	}
	delete(p.elements, loc.String())
	p.pending[loc.String()] = delayed{polls: polls, elements: els}
	p.finds[loc.String()] = 0
}

// Vanish removes the matches of loc after they have been returned by
// `polls` more lookups.
func (p *Page) Vanish(loc locator.Locator, polls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vanish[loc.String()] = polls
}

// Remove drops every match of loc.
func (p *Page) Remove(loc locator.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, loc.String())
	delete(p.pending, loc.String())
	delete(p.vanish, loc.String())
}

// Finds returns how many times loc was looked up at page level.
func (p *Page) Finds(loc locator.Locator) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds[loc.String()]
}

// Trace returns the interactions recorded so far, in order.
func (p *Page) Trace() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.trace)
}

// Record appends an entry to the trace. Hooks use it to mark page changes.
func (p *Page) Record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trace = append(p.trace, fmt.Sprintf(format, args...))
}

func (p *Page) Find(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := loc.String()
	p.finds[key]++
	if p.FindErr != nil {
		return nil, p.FindErr
	}
	if d, ok := p.pending[key]; ok && p.finds[key] > d.polls {
		p.elements[key] = d.elements
		delete(p.pending, key)
	}
	found := asElements(p.elements[key])
	if n, ok := p.vanish[key]; ok && len(found) > 0 {
		if n <= 1 {
			delete(p.elements, key)
			delete(p.vanish, key)
		} else {
			p.vanish[key] = n - 1
		}
	}
	return found, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Record("navigate %s", url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func asElements(els []*Element) []browser.Element {
	out := make([]browser.Element, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}
