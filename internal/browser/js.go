// internal/browser/js.go
package browser

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// textSelectorPrefixes are the pseudo-selectors QueryAll understands beyond
// plain CSS. Order matters: the substring form must be checked first.
const (
	textContainsPrefix = "text*="
	textExactPrefix    = "text="
)

// buildQueryExpression translates a selector into a JS expression returning
// an array of matching elements. Text pseudo-selectors walk all elements and
// filter on textContent; everything else goes straight to querySelectorAll.
func buildQueryExpression(selector string) string {
	if strings.HasPrefix(selector, textContainsPrefix) {
		target, _ := json.Marshal(strings.TrimPrefix(selector, textContainsPrefix))
		return fmt.Sprintf(`(() => {
	const target = %s;
	const out = [];
	for (const el of document.querySelectorAll('*')) {
		if (el.children.length !== 0) continue;
		const text = [el.textContent, el.getAttribute('value'), el.getAttribute('placeholder'), el.getAttribute('aria-label')]
			.filter(Boolean).join(' ');
		if (text.includes(target)) out.push(el);
	}
	return out;
})()`, target)
	}
	if strings.HasPrefix(selector, textExactPrefix) {
		target, _ := json.Marshal(strings.TrimPrefix(selector, textExactPrefix))
		return fmt.Sprintf(`(() => {
	const target = %s;
	const out = [];
	for (const el of document.querySelectorAll('*')) {
		if (el.children.length === 0 && (el.textContent || '').trim() === target) out.push(el);
	}
	return out;
})()`, target)
	}
	sel, _ := json.Marshal(selector)
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, sel)
}

// selectorScript is a JS function generating a selector for an element.
// Bound as `this` via Runtime.callFunctionOn. Prefers #id, then the class
// chain, then an nth-child path relative to the parent; a detached element
// degrades to its bare tag name. Non-element inputs are rejected.
const selectorScript = `function() {
	const el = this;
	if (!el || el.nodeType !== 1) throw new Error('not an element');
	if (el.id) return '#' + el.id;
	const tag = el.tagName.toLowerCase();
	if (el.classList && el.classList.length > 0) {
		return tag + '.' + Array.from(el.classList).join('.');
	}
	const parent = el.parentElement;
	if (!parent) return tag;
	const index = Array.prototype.indexOf.call(parent.children, el) + 1;
	return tag + ':nth-child(' + index + ')';
}`

// textScript returns the element's textContent.
const textScript = `function() { return this.textContent || ''; }`

// attributeScript returns [present, value] for the named attribute.
const attributeScript = `function(name) {
	const v = this.getAttribute(name);
	return v === null ? [false, ''] : [true, v];
}`
