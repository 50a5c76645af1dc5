// Package dom locates page elements by CSS selector and/or visible text and
// renders the JavaScript predicates the wait and interaction layers evaluate.
package dom

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed locator.js
var locatorLib string

// Target identifies elements on the page. With only Text set it matches the
// innermost elements containing the text anywhere in the document.
type Target struct {
	Selector string
	Text     string
	// Exact requires the whole normalized text to match, case-sensitively.
	Exact bool
}

// CSS targets elements matching a selector.
func CSS(selector string) Target { return Target{Selector: selector} }

// Text targets the innermost elements containing text (case-insensitive).
func Text(text string) Target { return Target{Text: text} }

// WithText narrows a selector target to elements containing text.
func (t Target) WithText(text string) Target {
	t.Text = text
	return t
}

func (t Target) String() string {
	var parts []string
	if t.Selector != "" {
		parts = append(parts, fmt.Sprintf("css %q", t.Selector))
	}
	if t.Text != "" {
		if t.Exact {
			parts = append(parts, fmt.Sprintf("exact text %q", t.Text))
		} else {
			parts = append(parts, fmt.Sprintf("text %q", t.Text))
		}
	}
	if len(parts) == 0 {
		return "any element"
	}
	return strings.Join(parts, " with ")
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (t Target) wrap(body string) string {
	text := "null"
	if t.Text != "" {
		text = jsString(t.Text)
	}
	sel := "null"
	if t.Selector != "" {
		sel = jsString(t.Selector)
	}
	return fmt.Sprintf("(function () {\n%s\nvar found = __bcFind(%s, %s, %t);\n%s\n})()", locatorLib, sel, text, t.Exact, body)
}

// VisibleExpr evaluates to true when at least one match is visible.
func (t Target) VisibleExpr() string {
	return t.wrap("return found.some(__bcVisible);")
}

// HiddenExpr evaluates to true when no match is visible (including no match).
func (t Target) HiddenExpr() string {
	return t.wrap("return !found.some(__bcVisible);")
}

// CountExpr evaluates to the number of matches, visible or not.
func (t Target) CountExpr() string {
	return t.wrap("return found.length;")
}

// Point is the viewport position of the first visible match.
type Point struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// PointExpr scrolls the first visible match into view and evaluates to its
// centre as a Point.
func (t Target) PointExpr() string {
	return t.wrap(`var el = null;
for (var i = 0; i < found.length; i++) {
  if (__bcVisible(found[i])) { el = found[i]; break; }
}
if (!el) { return { found: found.length > 0, visible: false, x: 0, y: 0 }; }
el.scrollIntoView({ block: 'center', inline: 'center' });
var r = el.getBoundingClientRect();
return { found: true, visible: true, x: r.left + r.width / 2, y: r.top + r.height / 2 };`)
}
