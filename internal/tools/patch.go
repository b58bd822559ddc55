package tools

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means the patch target does not occur in the document.
	ErrNotFound = errors.New("old_str not found")
	// ErrEmptyContent means a full write carried no HTML.
	ErrEmptyContent = errors.New("html is empty")
)

// ApplyPatch replaces the first occurrence of oldStr in doc with newStr.
// An empty oldStr never matches.
func ApplyPatch(doc, oldStr, newStr string) (string, error) {
	if oldStr == "" {
		return doc, ErrNotFound
	}
	idx := strings.Index(doc, oldStr)
	if idx < 0 {
		return doc, ErrNotFound
	}
	return doc[:idx] + newStr + doc[idx+len(oldStr):], nil
}
