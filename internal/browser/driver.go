// internal/browser/driver.go
package browser

import (
	"context"
	"errors"

	"github.com/xkilldash9x/triage-cli/api/schemas"
)

// ErrPageClosed marks driver failures caused by the page or session going
// away entirely, as opposed to a single query misfiring. Callers treat it as
// fatal for the whole operation.
var ErrPageClosed = errors.New("page is closed")

// IsPageClosed reports whether err stems from the page or session being gone.
func IsPageClosed(err error) bool {
	return errors.Is(err, ErrPageClosed)
}

// ElementHandle is a live reference to one element in the page. Every handle
// pins a remote object on the browser side and must be disposed when the
// caller is done with it; the resource manager enforces that discipline.
type ElementHandle interface {
	// Dispose releases the remote object. Safe to call on a dead session;
	// the error is informational.
	Dispose(ctx context.Context) error

	// Text returns the element's textContent.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)

	// Selector generates a selector for this element inside the page's
	// evaluation context: #id when available, else a class chain, else an
	// nth-child path, falling back to the bare tag name.
	Selector(ctx context.Context) (string, error)
}

// Driver is the browser capability the diagnostic core consumes. The
// implementation (a chromedp session here) is interchangeable; tests use an
// in-memory fake.
//
// QueryAll accepts CSS selectors plus two text pseudo-selectors used by
// element discovery: "text=<t>" matches elements whose trimmed textContent
// equals t, "text*=<t>" matches elements whose textContent contains t.
type Driver interface {
	QueryAll(ctx context.Context, selector string) ([]ElementHandle, error)

	// Evaluate runs a JS expression in the page context and unmarshals the
	// by-value result into out (out may be nil to discard it).
	Evaluate(ctx context.Context, expression string, out interface{}) error

	// Identity returns the page's url and title.
	Identity(ctx context.Context) (schemas.PageIdentity, error)
}
