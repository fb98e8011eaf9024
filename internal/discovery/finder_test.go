// internal/discovery/finder_test.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/browser"
	"github.com/xkilldash9x/triage-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/triage-cli/internal/config"
	"github.com/xkilldash9x/triage-cli/internal/resource"
)

func newTestFinder(t *testing.T, driver browser.Driver) (*Finder, *resource.Manager) {
	t.Helper()
	mgr := resource.NewManager(config.ResourcesConfig{DisposeTimeout: time.Minute}, zap.NewNop())
	cfg := config.DiscoveryConfig{MaxResults: 10, MaxBatchSize: 100}
	return NewFinder(driver, mgr, cfg, zap.NewNop()), mgr
}

func TestFindAlternatives_SubmitScenario(t *testing.T) {
	ctx := context.Background()
	button := &browsertest.Element{Tag: "button", Text: "Submit"}
	input := &browsertest.Element{Tag: "input", Attrs: map[string]string{"type": "submit", "value": "Submit Form"}}
	driver := browsertest.NewDriver(button, input)

	finder, _ := newTestFinder(t, driver)
	alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Text: "Submit"}, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(alts), 2)

	for _, alt := range alts {
		assert.True(t, strings.HasPrefix(alt.Reason, "text match:"),
			"reason %q should come from the text strategy", alt.Reason)
	}

	// The exact match ranks first.
	assert.Equal(t, "button", alts[0].Selector)
	assert.InDelta(t, 1.0, alts[0].Confidence, 1e-9)
	assert.Equal(t, "input", alts[1].Selector)
	assert.InDelta(t, 0.8, alts[1].Confidence, 1e-9)
}

func TestFindAlternatives_ConfidenceConstants(t *testing.T) {
	ctx := context.Background()

	t.Run("exact role", func(t *testing.T) {
		driver := browsertest.NewDriver(&browsertest.Element{Tag: "div", ID: "d1", Attrs: map[string]string{"role": "button"}})
		finder, _ := newTestFinder(t, driver)
		alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Role: "button"}, 10)
		require.NoError(t, err)
		require.Len(t, alts, 1)
		assert.InDelta(t, 0.7, alts[0].Confidence, 1e-9)
	})

	t.Run("implicit role", func(t *testing.T) {
		driver := browsertest.NewDriver(&browsertest.Element{Tag: "input", ID: "i1", Attrs: map[string]string{"type": "submit"}})
		finder, _ := newTestFinder(t, driver)
		alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Role: "button"}, 10)
		require.NoError(t, err)
		require.Len(t, alts, 1)
		assert.InDelta(t, 0.6, alts[0].Confidence, 1e-9)
	})

	t.Run("tag name", func(t *testing.T) {
		driver := browsertest.NewDriver(&browsertest.Element{Tag: "textarea", ID: "t1"})
		finder, _ := newTestFinder(t, driver)
		alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{TagName: "textarea"}, 10)
		require.NoError(t, err)
		require.Len(t, alts, 1)
		assert.InDelta(t, 0.5, alts[0].Confidence, 1e-9)
	})

	t.Run("attributes", func(t *testing.T) {
		driver := browsertest.NewDriver(&browsertest.Element{Tag: "input", ID: "a1", Attrs: map[string]string{"name": "email"}})
		finder, _ := newTestFinder(t, driver)
		alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Attributes: map[string]string{"name": "email"}}, 10)
		require.NoError(t, err)
		require.Len(t, alts, 1)
		assert.InDelta(t, 0.9, alts[0].Confidence, 1e-9)
	})
}

func TestFindAlternatives_OrderingAndDedup(t *testing.T) {
	ctx := context.Background()
	// One element reachable through two strategies, plus weaker matches.
	login := &browsertest.Element{Tag: "button", ID: "login", Text: "Login", Attrs: map[string]string{"name": "login"}}
	other := &browsertest.Element{Tag: "button", ID: "other", Text: "Logout"}
	driver := browsertest.NewDriver(login, other)

	finder, _ := newTestFinder(t, driver)
	alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{
		Text:       "Login",
		Attributes: map[string]string{"name": "login"},
	}, 10)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, alt := range alts {
		assert.False(t, seen[alt.Selector], "duplicate selector %q", alt.Selector)
		seen[alt.Selector] = true
		assert.GreaterOrEqual(t, alt.Confidence, 0.0)
		assert.LessOrEqual(t, alt.Confidence, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, alt.Confidence, alts[i-1].Confidence, "confidence must be non-increasing")
		}
	}
	// #login appears once, via its first (text) match.
	require.True(t, seen["#login"])
	assert.InDelta(t, 1.0, alts[0].Confidence, 1e-9)
	assert.Equal(t, "#login", alts[0].Selector)
}

func TestFindAlternatives_LimitAndDisposal(t *testing.T) {
	ctx := context.Background()
	elements := make([]*browsertest.Element, 20)
	for i := range elements {
		elements[i] = &browsertest.Element{
			Tag:   "div",
			ID:    fmt.Sprintf("el-%d", i),
			Attrs: map[string]string{"role": "button"},
		}
	}
	driver := browsertest.NewDriver(elements...)

	finder, mgr := newTestFinder(t, driver)
	require.Equal(t, 0, mgr.ActiveCount())

	alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Role: "button"}, 5)
	require.NoError(t, err)
	assert.Len(t, alts, 5)

	// Kept handles stay tracked for the caller; everything else is gone.
	assert.Equal(t, 5, mgr.ActiveCount())

	disposed := 0
	for _, el := range elements {
		if el.DisposeCount.Load() > 0 {
			disposed++
		}
	}
	assert.Equal(t, 15, disposed, "overflow candidates must be disposed immediately")
}

func TestFindAlternatives_ClampsToMaxBatchSize(t *testing.T) {
	ctx := context.Background()
	elements := make([]*browsertest.Element, 6)
	for i := range elements {
		elements[i] = &browsertest.Element{Tag: "li", ID: fmt.Sprintf("li-%d", i)}
	}
	driver := browsertest.NewDriver(elements...)

	mgr := resource.NewManager(config.ResourcesConfig{DisposeTimeout: time.Minute}, zap.NewNop())
	finder := NewFinder(driver, mgr, config.DiscoveryConfig{MaxResults: 10, MaxBatchSize: 3}, zap.NewNop())

	alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{TagName: "li"}, 50)
	require.NoError(t, err)
	assert.Len(t, alts, 3)
}

func TestFindAlternatives_StrategyFailureIsSkipped(t *testing.T) {
	ctx := context.Background()
	button := &browsertest.Element{Tag: "button", ID: "ok", Text: "Submit"}
	driver := browsertest.NewDriver(button)
	driver.FailSelectors = map[string]error{
		"text=Submit": errors.New("selector engine exploded"),
	}

	finder, _ := newTestFinder(t, driver)
	alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Text: "Submit"}, 10)
	require.NoError(t, err, "one failing variant must not fail the call")
	require.Len(t, alts, 1, "the substring variant still finds the button")
	assert.InDelta(t, 1.0, alts[0].Confidence, 1e-9)
}

func TestFindAlternatives_PageClosedDisposesAccumulated(t *testing.T) {
	ctx := context.Background()
	kept := &browsertest.Element{Tag: "button", ID: "kept", Text: "Submit"}
	driver := browsertest.NewDriver(kept)
	// The text strategy succeeds, then the role strategy hits a dead page.
	driver.FailSelectors = map[string]error{
		`[role="button"]`: browser.ErrPageClosed,
	}

	finder, mgr := newTestFinder(t, driver)
	_, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Text: "Submit", Role: "button"}, 10)
	require.ErrorIs(t, err, browser.ErrPageClosed)

	assert.Equal(t, 0, mgr.ActiveCount(), "accumulated handles must be disposed before the error surfaces")
	assert.GreaterOrEqual(t, kept.DisposeCount.Load(), int32(1))
}

func TestFindAlternatives_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil driver", func(t *testing.T) {
		mgr := resource.NewManager(config.ResourcesConfig{DisposeTimeout: time.Minute}, zap.NewNop())
		finder := NewFinder(nil, mgr, config.DiscoveryConfig{MaxResults: 10, MaxBatchSize: 100}, zap.NewNop())
		_, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{Text: "x"}, 5)
		assert.ErrorIs(t, err, ErrNoDriver)
	})

	t.Run("empty criteria", func(t *testing.T) {
		finder, _ := newTestFinder(t, browsertest.NewDriver())
		alts, err := finder.FindAlternatives(ctx, schemas.SearchCriteria{}, 5)
		require.NoError(t, err)
		assert.Empty(t, alts)
	})
}
