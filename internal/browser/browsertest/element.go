package browsertest

import (
	"context"
	"fmt"
	"slices"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

// Element is a scriptable browser.Element. Its state is guarded by the lock
// of the page it is attached to.
type Element struct {
	Name string

	// OnClick runs after Click or HoverClick succeeded, outside the page lock.
	OnClick func()
	// ClickErr, when set, makes Click and HoverClick fail.
	ClickErr error

	page     *Page
	text     string
	hidden   bool
	stalled  bool
	children map[string][]*Element
	options  []string

	clicks      int
	hoverClicks int
	typed       string
	selected    string
}

var _ browser.Element = (*Element)(nil)

// NewElement returns a visible element with no text.
func NewElement(name string) *Element {
	return &Element{Name: name, children: make(map[string][]*Element)}
}

// WithText sets the rendered text.
func (e *Element) WithText(text string) *Element {
	e.text = text
	return e
}

// Hidden marks the element as present but not rendered.
func (e *Element) Hidden() *Element {
	e.hidden = true
	return e
}

// Stalled makes Type block until its context is done, like a field that
// never becomes ready for input.
func (e *Element) Stalled() *Element {
	e.stalled = true
	return e
}

// WithChildren makes els the matches of loc inside e.
func (e *Element) WithChildren(loc locator.Locator, els ...*Element) *Element {
	e.children[loc.String()] = els
	if e.page != nil {
		for _, c := range els {
			c.attach(e.page)
		}
	}
	return e
}

// WithOptions restricts SelectValue to the given option values.
func (e *Element) WithOptions(values ...string) *Element {
	e.options = values
	return e
}

func (e *Element) attach(p *Page) {
	e.page = p
	for _, cs := range e.children {
		for _, c := range cs {
			c.attach(p)
		}
	}
}

func (e *Element) lock() func() {
	if e.page == nil {
		return func() {}
	}
	e.page.mu.Lock()
	return e.page.mu.Unlock
}

func (e *Element) record(format string, args ...any) {
	if e.page != nil {
		e.page.trace = append(e.page.trace, fmt.Sprintf(format, args...))
	}
}

// SetVisible changes whether the element is rendered.
func (e *Element) SetVisible(visible bool) {
	defer e.lock()()
	e.hidden = !visible
}

// Clicks returns the number of plain clicks.
func (e *Element) Clicks() int {
	defer e.lock()()
	return e.clicks
}

// HoverClicks returns the number of hover-then-click gestures.
func (e *Element) HoverClicks() int {
	defer e.lock()()
	return e.hoverClicks
}

// Typed returns everything typed into the element.
func (e *Element) Typed() string {
	defer e.lock()()
	return e.typed
}

// Selected returns the last selected option value.
func (e *Element) Selected() string {
	defer e.lock()()
	return e.selected
}

func (e *Element) Find(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer e.lock()()
	return asElements(e.children[loc.String()]), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer e.lock()()
	return e.text, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer e.lock()()
	return !e.hidden, nil
}

func (e *Element) Click(ctx context.Context) error {
	return e.click(ctx, false)
}

func (e *Element) HoverClick(ctx context.Context) error {
	return e.click(ctx, true)
}

func (e *Element) click(ctx context.Context, hover bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := e.lock()
	if hover {
		e.hoverClicks++
		e.record("hoverclick %s", e.Name)
	} else {
		e.clicks++
		e.record("click %s", e.Name)
	}
	err := e.ClickErr
	unlock()

	if err != nil {
		return fmt.Errorf("%w: click %s: %v", browser.ErrNotInteractable, e.Name, err)
	}
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	defer e.lock()()
	e.typed += text
	e.record("type %s", e.Name)
	return nil
}

func (e *Element) SelectValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer e.lock()()
	if e.options != nil && !slices.Contains(e.options, value) {
		return fmt.Errorf("%w: option %q on %s", browser.ErrElementNotFound, value, e.Name)
	}
	e.selected = value
	e.record("select %s %s", e.Name, value)
	return nil
}
