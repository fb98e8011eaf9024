// internal/analysis/scripts.go
package analysis

// structureScript collects the page-structure payload in one round trip:
// iframe accessibility, modal indicators, and element visibility counts.
// Cross-origin frames throw on contentDocument access and land in the
// inaccessible bucket.
const structureScript = `(() => {
    const iframes = Array.from(document.querySelectorAll('iframe'));
    const accessible = [];
    const inaccessible = [];
    for (const frame of iframes) {
        const label = frame.src || frame.name || frame.id || 'about:blank';
        try {
            if (frame.contentDocument) {
                accessible.push(label);
            } else {
                inaccessible.push(label);
            }
        } catch (e) {
            inaccessible.push(label);
        }
    }

    const blockedBy = [];
    const openDialog = document.querySelector('dialog[open]') ||
        document.querySelector('[role="dialog"], [role="alertdialog"]');
    if (openDialog) {
        blockedBy.push(openDialog.tagName.toLowerCase());
    }
    const overlay = document.querySelector('.modal.show, .modal-backdrop, [aria-modal="true"]');
    if (overlay && overlay !== openDialog) {
        blockedBy.push(overlay.tagName.toLowerCase());
    }

    const interactableTags = new Set(['a', 'button', 'input', 'select', 'textarea']);
    let totalVisible = 0;
    let totalInteractable = 0;
    let missingAria = 0;
    for (const el of document.querySelectorAll('*')) {
        const style = window.getComputedStyle(el);
        if (style.display === 'none' || style.visibility === 'hidden') {
            continue;
        }
        const rect = el.getBoundingClientRect();
        if (rect.width === 0 && rect.height === 0) {
            continue;
        }
        totalVisible++;
        const tag = el.tagName.toLowerCase();
        if (interactableTags.has(tag) || el.hasAttribute('onclick') || el.getAttribute('role') === 'button') {
            totalInteractable++;
            if (!el.hasAttribute('aria-label') && !el.hasAttribute('aria-labelledby') &&
                (el.textContent || '').trim() === '') {
                missingAria++;
            }
        }
    }

    return {
        iframes: {
            detected: iframes.length > 0,
            count: iframes.length,
            accessible: accessible,
            inaccessible: inaccessible
        },
        modalStates: {
            hasDialog: !!openDialog,
            hasFileChooser: !!document.querySelector('input[type="file"]:focus'),
            blockedBy: blockedBy
        },
        elements: {
            totalVisible: totalVisible,
            totalInteractable: totalInteractable,
            missingAria: missingAria
        }
    };
})()`

// performanceScript samples navigation timing and resource counts from the
// Performance API. Heap usage is Chrome-only; zero elsewhere.
const performanceScript = `(() => {
    const nav = performance.getEntriesByType('navigation')[0];
    const heap = (performance.memory && performance.memory.usedJSHeapSize) || 0;
    return {
        domContentLoadedMs: nav ? nav.domContentLoadedEventEnd : 0,
        loadEventMs: nav ? nav.loadEventEnd : 0,
        resourceCount: performance.getEntriesByType('resource').length,
        jsHeapUsedBytes: heap
    };
})()`

// snapshotScript exports the serialized document for offline structure
// analysis when live evaluation is unavailable.
const snapshotScript = `document.documentElement.outerHTML`

// complexityScript counts elements and frames for the parallel-analysis
// heuristic. Cheap by design; it runs before any real analysis.
const complexityScript = `(() => ({
    elementCount: document.querySelectorAll('*').length,
    frameCount: document.querySelectorAll('iframe').length
}))()`
