// internal/analysis/snapshot.go
package analysis

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/triage-cli/api/schemas"
)

var interactableTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// AnalyzeSnapshot derives a page-structure payload from serialized HTML.
// It sees only markup, not the rendered page: visibility is judged from
// inline styles and the hidden attribute, and frame accessibility from the
// src value, since no live document is available to probe. Results are a
// degraded approximation of the live analysis.
func AnalyzeSnapshot(source string) (*schemas.PageStructure, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parsing page snapshot: %w", err)
	}

	structure := &schemas.PageStructure{
		Iframes: schemas.IframeInfo{
			Accessible:   []string{},
			Inaccessible: []string{},
		},
		ModalStates: schemas.ModalInfo{BlockedBy: []string{}},
	}
	walkSnapshot(root, structure)
	structure.Iframes.Detected = structure.Iframes.Count > 0
	return structure, nil
}

func walkSnapshot(node *html.Node, structure *schemas.PageStructure) {
	if node.Type == html.ElementNode && !inspectNode(node, structure) {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkSnapshot(child, structure)
	}
}

// inspectNode updates counts for one element and reports whether its
// subtree should be walked. Hidden subtrees and frame contents are pruned.
func inspectNode(node *html.Node, structure *schemas.PageStructure) bool {
	tag := strings.ToLower(node.Data)
	attrs := attrMap(node)

	if tag == "iframe" {
		structure.Iframes.Count++
		label := attrs["src"]
		if label == "" {
			label = attrs["name"]
		}
		if label == "" {
			label = attrs["id"]
		}
		if label == "" {
			label = "about:blank"
		}
		// Without a live document there is no way to probe contentDocument;
		// srcless and fragment frames are assumed same-origin, external
		// sources are not.
		if attrs["src"] == "" || strings.HasPrefix(attrs["src"], "about:") {
			structure.Iframes.Accessible = append(structure.Iframes.Accessible, label)
		} else {
			structure.Iframes.Inaccessible = append(structure.Iframes.Inaccessible, label)
		}
		return false
	}

	_, hidden := attrs["hidden"]
	style := strings.ToLower(attrs["style"])
	if hidden || strings.Contains(style, "display:none") || strings.Contains(style, "display: none") ||
		strings.Contains(style, "visibility:hidden") || strings.Contains(style, "visibility: hidden") {
		return false
	}

	if tag == "dialog" {
		if _, open := attrs["open"]; open {
			structure.ModalStates.HasDialog = true
			structure.ModalStates.BlockedBy = append(structure.ModalStates.BlockedBy, tag)
		}
	}
	switch attrs["role"] {
	case "dialog", "alertdialog":
		structure.ModalStates.HasDialog = true
		structure.ModalStates.BlockedBy = append(structure.ModalStates.BlockedBy, tag)
	}
	if attrs["aria-modal"] == "true" && !structure.ModalStates.HasDialog {
		structure.ModalStates.BlockedBy = append(structure.ModalStates.BlockedBy, tag)
	}

	structure.Elements.TotalVisible++
	_, clickable := attrs["onclick"]
	if interactableTags[tag] || clickable || attrs["role"] == "button" {
		structure.Elements.TotalInteractable++
		_, hasLabel := attrs["aria-label"]
		_, hasLabelledBy := attrs["aria-labelledby"]
		if !hasLabel && !hasLabelledBy && strings.TrimSpace(textOf(node)) == "" {
			structure.Elements.MissingAria++
		}
	}
	return true
}

func attrMap(node *html.Node) map[string]string {
	attrs := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return attrs
}

func textOf(node *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return sb.String()
}
