// internal/browser/element.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// cdpElement is a live remote-object reference to one DOM element.
type cdpElement struct {
	session  *Session
	objectID runtime.RemoteObjectID
}

// Dispose releases the remote object on the browser side.
func (e *cdpElement) Dispose(ctx context.Context) error {
	runCtx, cancel := e.session.runContext(ctx, evaluateTimeout)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		return runtime.ReleaseObject(e.objectID).Do(c)
	}))
}

// Text returns the element's textContent.
func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.call(ctx, textScript, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute returns the named attribute value and presence.
func (e *cdpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var result []interface{}
	if err := e.call(ctx, attributeScript, &result, name); err != nil {
		return "", false, err
	}
	if len(result) != 2 {
		return "", false, fmt.Errorf("unexpected attribute result shape: %v", result)
	}
	present, _ := result[0].(bool)
	value, _ := result[1].(string)
	return value, present, nil
}

// Selector generates a selector for the element inside the page's
// evaluation context.
func (e *cdpElement) Selector(ctx context.Context) (string, error) {
	var selector string
	if err := e.call(ctx, selectorScript, &selector); err != nil {
		return "", err
	}
	return selector, nil
}

// call invokes a JS function with the element bound as `this`, unmarshaling
// the by-value result into out.
func (e *cdpElement) call(ctx context.Context, fnDecl string, out interface{}, args ...interface{}) error {
	runCtx, cancel := e.session.runContext(ctx, evaluateTimeout)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, arg := range args {
			raw, err := json.Marshal(arg)
			if err != nil {
				return fmt.Errorf("failed to marshal call argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}

		obj, exc, err := runtime.CallFunctionOn(fnDecl).
			WithObjectID(e.objectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return fmt.Errorf("element call failed: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("element call threw: %s", exc.Text)
		}
		if out == nil || obj == nil {
			return nil
		}
		if err := json.Unmarshal(obj.Value, out); err != nil {
			return fmt.Errorf("failed to unmarshal element call result: %w", err)
		}
		return nil
	}))
}
