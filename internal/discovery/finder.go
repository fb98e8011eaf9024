// internal/discovery/finder.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/browser"
	"github.com/xkilldash9x/triage-cli/internal/config"
	"github.com/xkilldash9x/triage-cli/internal/resource"
)

// ErrNoDriver is returned when discovery is asked to run without a page.
var ErrNoDriver = errors.New("element discovery requires a page driver")

// Finder performs multi-strategy fuzzy searches for alternative elements
// when an original selector fails to resolve. Every element handle it pulls
// from the driver is tracked with the resource manager: handles backing
// returned alternatives transfer to the caller (and are eventually reaped by
// the TTL sweep if the caller never releases them); everything else is
// disposed before the call returns.
type Finder struct {
	driver    browser.Driver
	resources *resource.Manager
	cfg       config.DiscoveryConfig
	logger    *zap.Logger
}

// NewFinder creates a Finder bound to one page driver.
func NewFinder(driver browser.Driver, resources *resource.Manager, cfg config.DiscoveryConfig, logger *zap.Logger) *Finder {
	return &Finder{
		driver:    driver,
		resources: resources,
		cfg:       cfg,
		logger:    logger.Named("element_discovery"),
	}
}

// candidate pairs a scored alternative with the handle that backs it.
type candidate struct {
	alt    schemas.AlternativeElement
	handle *resource.SmartHandle
}

// FindAlternatives runs every applicable strategy and returns a
// deduplicated, confidence-sorted list truncated to the effective limit.
// maxResults is clamped to the configured batch ceiling; zero or negative
// falls back to the configured default.
func (f *Finder) FindAlternatives(ctx context.Context, criteria schemas.SearchCriteria, maxResults int) ([]schemas.AlternativeElement, error) {
	if f.driver == nil {
		return nil, ErrNoDriver
	}

	limit := maxResults
	if limit <= 0 {
		limit = f.cfg.MaxResults
	}
	if limit > f.cfg.MaxBatchSize {
		limit = f.cfg.MaxBatchSize
	}
	if limit <= 0 || criteria.Empty() {
		return []schemas.AlternativeElement{}, nil
	}

	var collected []candidate
	// fail disposes everything accumulated so far, scored or not, before
	// surfacing a whole-call error.
	fail := func(err error) ([]schemas.AlternativeElement, error) {
		batch := resource.NewSmartHandleBatch()
		for _, c := range collected {
			batch.Add(c.handle)
		}
		batch.DisposeAll(context.WithoutCancel(ctx))
		return nil, err
	}

	strategies := []func(context.Context, schemas.SearchCriteria, int, []candidate) ([]candidate, error){
		f.findByText,
		f.findByRole,
		f.findByTagName,
		f.findByAttributes,
	}
	for _, strategy := range strategies {
		var err error
		collected, err = strategy(ctx, criteria, limit, collected)
		if err != nil {
			return fail(err)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
	}

	return f.merge(ctx, collected, limit), nil
}

// queryStrategy runs one selector variant and hands each handle to accept.
// A failing selector is a strategy-local problem: it is logged and skipped
// so the remaining variants still run. A dead page aborts the whole call.
func (f *Finder) queryStrategy(ctx context.Context, selector string, accept func(browser.ElementHandle) error) error {
	handles, err := f.driver.QueryAll(ctx, selector)
	if err != nil {
		if errors.Is(err, browser.ErrPageClosed) || ctx.Err() != nil {
			return err
		}
		f.logger.Debug("Selector strategy failed; skipping.",
			zap.String("selector", selector), zap.Error(err))
		return nil
	}
	for _, h := range handles {
		if err := accept(h); err != nil {
			return err
		}
	}
	return nil
}

// discard releases a handle we decided not to keep.
func (f *Finder) discard(ctx context.Context, h browser.ElementHandle) {
	if err := h.Dispose(ctx); err != nil {
		f.logger.Debug("Failed to dispose rejected candidate.", zap.Error(err))
	}
}

// findByText scores candidates from several text-oriented selector variants
// against the target string. Candidates at or below the minimum similarity
// are disposed on the spot.
func (f *Finder) findByText(ctx context.Context, criteria schemas.SearchCriteria, limit int, collected []candidate) ([]candidate, error) {
	if criteria.Text == "" {
		return collected, nil
	}
	target := criteria.Text

	variants := []string{
		"text=" + target,
		"text*=" + target,
		fmt.Sprintf(`[value=%q]`, target),
		fmt.Sprintf(`[placeholder=%q]`, target),
		fmt.Sprintf(`[aria-label=%q]`, target),
	}

	for _, selector := range variants {
		err := f.queryStrategy(ctx, selector, func(h browser.ElementHandle) error {
			if len(collected) >= limit {
				f.discard(ctx, h)
				return nil
			}

			composite, err := f.compositeText(ctx, h)
			if err != nil {
				f.discard(ctx, h)
				return nil
			}
			score := textSimilarity(target, composite)
			if score <= minTextScore {
				f.discard(ctx, h)
				return nil
			}

			c, ok := f.keep(ctx, h, score, "text match: "+strings.TrimSpace(composite))
			if ok {
				collected = append(collected, c)
			}
			return nil
		})
		if err != nil {
			return collected, err
		}
	}
	return collected, nil
}

// compositeText concatenates the signals a user-visible label can hide in:
// text content, value, placeholder and aria-label.
func (f *Finder) compositeText(ctx context.Context, h browser.ElementHandle) (string, error) {
	text, err := h.Text(ctx)
	if err != nil {
		return "", err
	}
	parts := []string{text}
	for _, attr := range []string{"value", "placeholder", "aria-label"} {
		v, ok, err := h.Attribute(ctx, attr)
		if err != nil {
			return "", err
		}
		if ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " "), nil
}

// findByRole matches the explicit role attribute, then implicit-role native
// elements while the running total stays under the limit.
func (f *Finder) findByRole(ctx context.Context, criteria schemas.SearchCriteria, limit int, collected []candidate) ([]candidate, error) {
	if criteria.Role == "" {
		return collected, nil
	}
	role := criteria.Role

	accept := func(confidence float64, reason string) func(browser.ElementHandle) error {
		return func(h browser.ElementHandle) error {
			if len(collected) >= limit {
				f.discard(ctx, h)
				return nil
			}
			if c, ok := f.keep(ctx, h, confidence, reason); ok {
				collected = append(collected, c)
			}
			return nil
		}
	}

	err := f.queryStrategy(ctx, fmt.Sprintf(`[role=%q]`, role), accept(exactRoleConf, "role match: "+role))
	if err != nil {
		return collected, err
	}

	if len(collected) < limit {
		for _, selector := range implicitRoleSelectors[role] {
			if err := f.queryStrategy(ctx, selector, accept(implicitRoleConf, "implicit role match: "+role)); err != nil {
				return collected, err
			}
		}
	}
	return collected, nil
}

// findByTagName matches elements by bare tag name.
func (f *Finder) findByTagName(ctx context.Context, criteria schemas.SearchCriteria, limit int, collected []candidate) ([]candidate, error) {
	if criteria.TagName == "" {
		return collected, nil
	}
	tag := strings.ToLower(criteria.TagName)

	err := f.queryStrategy(ctx, tag, func(h browser.ElementHandle) error {
		if len(collected) >= limit {
			f.discard(ctx, h)
			return nil
		}
		if c, ok := f.keep(ctx, h, tagMatchConf, "tag match: "+tag); ok {
			collected = append(collected, c)
		}
		return nil
	})
	return collected, err
}

// findByAttributes matches exact name="value" pairs, iterating pairs in a
// deterministic order until the limit.
func (f *Finder) findByAttributes(ctx context.Context, criteria schemas.SearchCriteria, limit int, collected []candidate) ([]candidate, error) {
	if len(criteria.Attributes) == 0 {
		return collected, nil
	}

	names := make([]string, 0, len(criteria.Attributes))
	for name := range criteria.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(collected) >= limit {
			break
		}
		selector := fmt.Sprintf(`[%s=%q]`, name, criteria.Attributes[name])
		err := f.queryStrategy(ctx, selector, func(h browser.ElementHandle) error {
			if len(collected) >= limit {
				f.discard(ctx, h)
				return nil
			}
			if c, ok := f.keep(ctx, h, attributeMatchConf, "attribute match: "+name); ok {
				collected = append(collected, c)
			}
			return nil
		})
		if err != nil {
			return collected, err
		}
	}
	return collected, nil
}

// keep generates the candidate's selector and registers its handle with the
// resource manager. A handle whose selector cannot be generated is disposed
// and skipped.
func (f *Finder) keep(ctx context.Context, h browser.ElementHandle, confidence float64, reason string) (candidate, bool) {
	selector, err := h.Selector(ctx)
	if err != nil {
		f.logger.Debug("Failed to generate selector for candidate; dropping.", zap.Error(err))
		f.discard(ctx, h)
		return candidate{}, false
	}

	smart := resource.NewSmartHandle(f.resources, h, f.logger)
	return candidate{
		alt: schemas.AlternativeElement{
			Selector:   selector,
			Confidence: confidence,
			Reason:     reason,
			ElementID:  smart.ID(),
		},
		handle: smart,
	}, true
}

// merge deduplicates by selector (first occurrence wins), stable-sorts by
// confidence descending and truncates to the limit. Handles behind dropped
// entries are disposed here.
func (f *Finder) merge(ctx context.Context, collected []candidate, limit int) []schemas.AlternativeElement {
	seen := make(map[string]struct{}, len(collected))
	unique := make([]candidate, 0, len(collected))
	dropped := resource.NewSmartHandleBatch()

	for _, c := range collected {
		if _, dup := seen[c.alt.Selector]; dup {
			dropped.Add(c.handle)
			continue
		}
		seen[c.alt.Selector] = struct{}{}
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].alt.Confidence > unique[j].alt.Confidence
	})

	if len(unique) > limit {
		for _, c := range unique[limit:] {
			dropped.Add(c.handle)
		}
		unique = unique[:limit]
	}

	dropped.DisposeAll(ctx)

	out := make([]schemas.AlternativeElement, len(unique))
	for i, c := range unique {
		out[i] = c.alt
	}
	return out
}
