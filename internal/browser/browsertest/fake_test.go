// internal/browser/browsertest/fake_test.go
package browsertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesSelectorSubset(t *testing.T) {
	button := &Element{Tag: "button", Text: "Submit", Attrs: map[string]string{"type": "submit"}}
	input := &Element{Tag: "input", Attrs: map[string]string{"type": "submit", "value": "Submit Form"}}
	link := &Element{Tag: "a", Attrs: map[string]string{"href": "/home"}}
	styled := &Element{Tag: "div", Classes: []string{"modal", "open"}}
	byID := &Element{Tag: "span", ID: "status"}

	tests := []struct {
		name     string
		selector string
		el       *Element
		want     bool
	}{
		{"bare tag", "button", button, true},
		{"bare tag mismatch", "button", input, false},
		{"tag with attr equals", `input[type="submit"]`, input, true},
		{"attr equals unquoted", "input[type=submit]", input, true},
		{"attr equals mismatch", `input[type="text"]`, input, false},
		{"attr presence", "a[href]", link, true},
		{"attr presence missing", "a[download]", link, false},
		{"attr only", `[value="Submit Form"]`, input, true},
		{"class", ".modal", styled, true},
		{"class chain", "div.modal.open", styled, true},
		{"class missing", ".closed", styled, false},
		{"id", "#status", byID, true},
		{"exact text", "text=Submit", button, true},
		{"exact text trims", "text=Submit", &Element{Tag: "b", Text: "  Submit  "}, true},
		{"exact text mismatch", "text=Submit Form", button, false},
		{"substring text", "text*=Sub", button, true},
		{"substring text mismatch", "text*=Cancel", button, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(tt.el, tt.selector))
		})
	}
}

func TestQueryAllAndDisposeCounting(t *testing.T) {
	ctx := context.Background()
	b1 := &Element{Tag: "button", Text: "One"}
	b2 := &Element{Tag: "button", Text: "Two"}
	d := NewDriver(b1, b2, &Element{Tag: "a", Attrs: map[string]string{"href": "/x"}})

	handles, err := d.QueryAll(ctx, "button")
	require.NoError(t, err)
	require.Len(t, handles, 2)

	require.NoError(t, handles[0].Dispose(ctx))
	assert.Equal(t, int32(1), b1.DisposeCount.Load())
	assert.Equal(t, int32(0), b2.DisposeCount.Load())
}

func TestQueryAllFailureModes(t *testing.T) {
	ctx := context.Background()
	strategyErr := errors.New("evaluation failed")

	d := NewDriver(&Element{Tag: "button"})
	d.FailSelectors = map[string]error{"button": strategyErr}

	_, err := d.QueryAll(ctx, "button")
	assert.ErrorIs(t, err, strategyErr)

	d.SetClosed(true)
	_, err = d.QueryAll(ctx, "a")
	assert.ErrorIs(t, err, ErrPageClosed)
	_, err = d.Identity(ctx)
	assert.ErrorIs(t, err, ErrPageClosed)
}

func TestSelectorGenerationPreference(t *testing.T) {
	ctx := context.Background()

	withID := &Element{Tag: "div", ID: "main"}
	withClasses := &Element{Tag: "p", Classes: []string{"lead", "intro"}}
	parent := &Element{Tag: "ul"}
	first := &Element{Tag: "li"}
	second := &Element{Tag: "li"}
	parent.Attach(first)
	parent.Attach(second)
	orphan := &Element{Tag: "section"}

	sel, err := withID.Selector(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#main", sel)

	sel, err = withClasses.Selector(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p.lead.intro", sel)

	sel, err = second.Selector(ctx)
	require.NoError(t, err)
	assert.Equal(t, "li:nth-child(2)", sel)

	sel, err = orphan.Selector(ctx)
	require.NoError(t, err)
	assert.Equal(t, "section", sel)
}
