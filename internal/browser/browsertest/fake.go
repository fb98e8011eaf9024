// internal/browser/browsertest/fake.go
//
// Package browsertest provides an in-memory Driver implementation so the
// diagnostic core can be exercised without a live browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/browser"
)

// ErrPageClosed simulates a session whose page went away mid-call.
var ErrPageClosed = browser.ErrPageClosed

// Element is a fake DOM element. Selector generation follows the same
// preference order as the real driver: #id, class chain, nth-child path,
// bare tag.
type Element struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   map[string]string
	Text    string

	Parent   *Element
	Children []*Element

	DisposeCount atomic.Int32
	DisposeErr   error
}

// Attach links a child element, keeping parent pointers consistent.
func (e *Element) Attach(child *Element) *Element {
	child.Parent = e
	e.Children = append(e.Children, child)
	return e
}

func (e *Element) attr(name string) (string, bool) {
	switch name {
	case "id":
		if e.ID == "" {
			return "", false
		}
		return e.ID, true
	case "class":
		if len(e.Classes) == 0 {
			return "", false
		}
		return strings.Join(e.Classes, " "), true
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// Dispose records the release. Tests assert on DisposeCount.
func (e *Element) Dispose(ctx context.Context) error {
	e.DisposeCount.Add(1)
	return e.DisposeErr
}

// TextContent returns the element's text content.
func (e *Element) TextContent(ctx context.Context) (string, error) {
	return e.Text, nil
}

// Attribute returns the named attribute.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attr(name)
	return v, ok, nil
}

// Selector mirrors the real driver's in-page selector generation.
func (e *Element) Selector(ctx context.Context) (string, error) {
	if e.ID != "" {
		return "#" + e.ID, nil
	}
	tag := strings.ToLower(e.Tag)
	if len(e.Classes) > 0 {
		return tag + "." + strings.Join(e.Classes, "."), nil
	}
	if e.Parent == nil {
		return tag, nil
	}
	for i, sibling := range e.Parent.Children {
		if sibling == e {
			return fmt.Sprintf("%s:nth-child(%d)", tag, i+1), nil
		}
	}
	return tag, nil
}

// handle adapts Element to browser.ElementHandle. A fresh handle is returned
// per query so dispose counting reflects handle lifecycles, not elements.
type handle struct {
	el *Element
}

func (h *handle) Dispose(ctx context.Context) error { return h.el.Dispose(ctx) }
func (h *handle) Text(ctx context.Context) (string, error) {
	return h.el.TextContent(ctx)
}
func (h *handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	return h.el.Attribute(ctx, name)
}
func (h *handle) Selector(ctx context.Context) (string, error) { return h.el.Selector(ctx) }

// Unwrap exposes the underlying fake element for assertions.
func Unwrap(h browser.ElementHandle) (*Element, bool) {
	fh, ok := h.(*handle)
	if !ok {
		return nil, false
	}
	return fh.el, true
}

// Driver is a fake browser.Driver over a static element list.
type Driver struct {
	mu sync.Mutex

	elements []*Element

	// FailSelectors maps a selector to an error returned for that query,
	// simulating a single strategy throwing.
	FailSelectors map[string]error
	// Closed makes every call fail with ErrPageClosed.
	Closed bool
	// EvaluateFn, when set, services Evaluate calls.
	EvaluateFn func(expression string, out interface{}) error
	// Page is returned by Identity.
	Page schemas.PageIdentity

	queryCount atomic.Int32
}

// NewDriver creates a fake driver serving the given elements in document order.
func NewDriver(elements ...*Element) *Driver {
	return &Driver{elements: elements}
}

// Add appends elements to the fake page.
func (d *Driver) Add(elements ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = append(d.elements, elements...)
}

// Elements returns the fake page contents.
func (d *Driver) Elements() []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Element(nil), d.elements...)
}

// QueryCount reports how many QueryAll calls were made.
func (d *Driver) QueryCount() int {
	return int(d.queryCount.Load())
}

// QueryAll matches the selector against the fake page. Supported syntax
// mirrors what element discovery emits: "text=", "text*=", and a CSS subset
// of tag, #id, .class and [attr]/[attr=value] chains.
func (d *Driver) QueryAll(ctx context.Context, selector string) ([]browser.ElementHandle, error) {
	d.queryCount.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Closed {
		return nil, ErrPageClosed
	}
	if err, ok := d.FailSelectors[selector]; ok {
		return nil, err
	}

	var out []browser.ElementHandle
	for _, el := range d.elements {
		if matches(el, selector) {
			out = append(out, &handle{el: el})
		}
	}
	return out, nil
}

// Evaluate delegates to EvaluateFn.
func (d *Driver) Evaluate(ctx context.Context, expression string, out interface{}) error {
	d.mu.Lock()
	closed := d.Closed
	fn := d.EvaluateFn
	d.mu.Unlock()

	if closed {
		return ErrPageClosed
	}
	if fn == nil {
		return fmt.Errorf("no EvaluateFn configured for expression: %s", expression)
	}
	return fn(expression, out)
}

// Identity returns the configured page identity.
func (d *Driver) Identity(ctx context.Context) (schemas.PageIdentity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Closed {
		return schemas.PageIdentity{}, ErrPageClosed
	}
	return d.Page, nil
}

// SetClosed toggles the simulated page-closed state.
func (d *Driver) SetClosed(closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = closed
}

// matches implements the selector subset used by the diagnostic core.
func matches(el *Element, selector string) bool {
	if target, ok := strings.CutPrefix(selector, "text*="); ok {
		if len(el.Children) != 0 {
			return false
		}
		parts := []string{el.Text}
		for _, name := range []string{"value", "placeholder", "aria-label"} {
			if v, ok := el.attr(name); ok {
				parts = append(parts, v)
			}
		}
		return strings.Contains(strings.Join(parts, " "), target)
	}
	if target, ok := strings.CutPrefix(selector, "text="); ok {
		return len(el.Children) == 0 && strings.TrimSpace(el.Text) == target
	}

	tag, conditions, ok := parseSelector(selector)
	if !ok {
		return false
	}
	if tag != "" && !strings.EqualFold(tag, el.Tag) {
		return false
	}
	for _, cond := range conditions {
		switch cond.kind {
		case condID:
			if el.ID != cond.value {
				return false
			}
		case condClass:
			found := false
			for _, c := range el.Classes {
				if c == cond.value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case condAttrPresent:
			if _, ok := el.attr(cond.name); !ok {
				return false
			}
		case condAttrEquals:
			v, ok := el.attr(cond.name)
			if !ok || v != cond.value {
				return false
			}
		}
	}
	return true
}

type condKind int

const (
	condID condKind = iota
	condClass
	condAttrPresent
	condAttrEquals
)

type condition struct {
	kind  condKind
	name  string
	value string
}

// parseSelector splits a simple compound selector into its tag and
// conditions. Combinators are not supported; the core never emits them for
// queries.
func parseSelector(selector string) (string, []condition, bool) {
	s := strings.TrimSpace(selector)
	if s == "" {
		return "", nil, false
	}

	var tag string
	var conds []condition
	i := 0
	for i < len(s) {
		switch s[i] {
		case '#':
			j := i + 1
			for j < len(s) && s[j] != '.' && s[j] != '[' && s[j] != '#' {
				j++
			}
			conds = append(conds, condition{kind: condID, value: s[i+1 : j]})
			i = j
		case '.':
			j := i + 1
			for j < len(s) && s[j] != '.' && s[j] != '[' && s[j] != '#' {
				j++
			}
			conds = append(conds, condition{kind: condClass, value: s[i+1 : j]})
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return "", nil, false
			}
			body := s[i+1 : i+j]
			if name, value, found := strings.Cut(body, "="); found {
				value = strings.Trim(value, `"'`)
				conds = append(conds, condition{kind: condAttrEquals, name: name, value: value})
			} else {
				conds = append(conds, condition{kind: condAttrPresent, name: body})
			}
			i += j + 1
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' && s[j] != '#' {
				j++
			}
			tag = s[i:j]
			i = j
		}
	}
	return tag, conds, true
}
