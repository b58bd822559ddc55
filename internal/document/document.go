// Package document holds the page-level vocabulary shared by the store, the
// tool executor and the prompt assembler.
package document

import "strings"

// Placeholder is the HTML every new page starts with.
const Placeholder = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Untitled</title>
  <style>
    * { box-sizing: border-box; margin: 0; padding: 0; }
    body {
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      background: #f8f7f4;
      font-family: 'DM Sans', 'Helvetica Neue', sans-serif;
    }
    .placeholder { text-align: center; color: #bbb; }
    .placeholder p { font-size: 0.85rem; font-family: monospace; letter-spacing: 0.04em; }
    .placeholder span { display: block; font-size: 1.4rem; margin-bottom: 0.75rem; opacity: 0.4; }
  </style>
</head>
<body>
  <div class="placeholder">
    <span>&#10022;</span>
    <p>describe what you want to build</p>
  </div>
</body>
</html>`

// placeholderSentinel identifies the placeholder even after whitespace edits.
const placeholderSentinel = "describe what you want to build"

// IsPlaceholder reports whether html is still the untouched starting page:
// empty, the exact placeholder modulo surrounding whitespace, or anything
// carrying the placeholder sentence.
func IsPlaceholder(html string) bool {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" || trimmed == strings.TrimSpace(Placeholder) {
		return true
	}
	return strings.Contains(html, placeholderSentinel)
}

// Component is one entry of a page's component map, produced by a full
// rewrite to help later patch sessions target the right markup.
type Component struct {
	ID          string `json:"id" mapstructure:"id"`
	Selector    string `json:"selector" mapstructure:"selector"`
	Type        string `json:"type" mapstructure:"type"`
	Description string `json:"description" mapstructure:"description"`
}
