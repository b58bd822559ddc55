package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"empty", "", true},
		{"whitespace", " \n\t", true},
		{"exact placeholder", Placeholder, true},
		{"padded placeholder", "\n\n" + Placeholder + "\n", true},
		{"sentinel in custom markup", "<p>describe what you want to build</p>", true},
		{"real page", "<!DOCTYPE html><html><body><h1>Bakery</h1></body></html>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholder(tt.html))
		})
	}
}
