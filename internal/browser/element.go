package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
)

const (
	visibleJS = `function() {
	const r = this.getBoundingClientRect();
	const st = window.getComputedStyle(this);
	return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
}`

	textJS = `function() {
	return (this.innerText || this.textContent || '').trim();
}`

	// Angular only notices programmatic changes through input/change events.
	selectValueJS = `function(v) {
	const opt = Array.from(this.options || []).find(o => o.value === v);
	if (!opt) return false;
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`
)

type element struct {
	s    *Session
	node *cdp.Node
}

var _ Element = (*element)(nil)

func (e *element) String() string {
	return fmt.Sprintf("<%s node=%d>", e.node.LocalName, e.node.NodeID)
}

func (e *element) Find(ctx context.Context, loc locator.Locator) ([]Element, error) {
	return e.s.find(ctx, loc, e.node)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.call(ctx, textJS, &text); err != nil {
		return "", fmt.Errorf("read text of %s: %w", e, err)
	}
	return text, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.call(ctx, visibleJS, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.s.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("%w: click %s: %v", ErrNotInteractable, e, err)
	}
	return nil
}

func (e *element) HoverClick(ctx context.Context) error {
	err := e.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx); err != nil {
			return err
		}
		x, y, err := e.center(ctx)
		if err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		return chromedp.MouseClickXY(x, y).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("%w: hover and click %s: %v", ErrNotInteractable, e, err)
	}
	return nil
}

// Type focuses the node and dispatches the key events straight to it. Unlike
// chromedp.SendKeys it never waits for the node to become visible, so a
// field that cannot take input fails instead of blocking.
func (e *element) Type(ctx context.Context, text string) error {
	if err := e.s.run(ctx, chromedp.KeyEventNode(e.node, text)); err != nil {
		return fmt.Errorf("%w: type into %s: %v", ErrNotInteractable, e, err)
	}
	return nil
}

func (e *element) SelectValue(ctx context.Context, value string) error {
	var ok bool
	if err := e.call(ctx, selectValueJS, &ok, value); err != nil {
		return fmt.Errorf("%w: select %q on %s: %v", ErrNotInteractable, value, e, err)
	}
	if !ok {
		return fmt.Errorf("%w: option %q on %s", ErrElementNotFound, value, e)
	}
	return nil
}

// center returns the viewport coordinates of the middle of the node's
// first content quad.
func (e *element) center(ctx context.Context) (float64, float64, error) {
	quads, err := dom.GetContentQuads().WithNodeID(e.node.NodeID).Do(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(quads) == 0 || len(quads[0]) < 8 {
		return 0, 0, chromedp.ErrInvalidDimensions
	}
	q := quads[0]
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4, nil
}

// call runs a JavaScript function with the node bound to this.
func (e *element) call(ctx context.Context, fn string, res any, args ...any) error {
	return e.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		// Fails once the page navigated away; nothing left to release then.
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		return chromedp.CallFunctionOn(fn, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(ctx)
	}))
}
