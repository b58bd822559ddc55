package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    map[string]any
		wantErr bool
	}{
		{"nil", nil, map[string]any{}, false},
		{"empty string", "  ", map[string]any{}, false},
		{"serialized string", `{"old_str":"a","new_str":"b"}`, map[string]any{"old_str": "a", "new_str": "b"}, false},
		{"raw message", json.RawMessage(`{"html":"<p>x</p>"}`), map[string]any{"html": "<p>x</p>"}, false},
		{"parsed map", map[string]any{"query": "q"}, map[string]any{"query": "q"}, false},
		{"array is rejected", `["a"]`, nil, true},
		{"broken json", `{"html": `, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeArguments(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeToolCallIDs(t *testing.T) {
	calls := NormalizeToolCallIDs([]ToolCall{
		{ID: "keep", Name: "finish"},
		{Name: "str replace"},
		{},
	})

	assert.Equal(t, "keep", calls[0].ID)
	assert.Equal(t, "call_str_replace_2", calls[1].ID)
	assert.Equal(t, "call_3", calls[2].ID)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem(&CompletionRequest{
		SystemPrompt: "base",
		Messages: []*Message{
			{Role: RoleSystem, Content: "extra"},
			{Role: RoleUser, Content: "hi"},
			nil,
		},
	})

	assert.Equal(t, "base\n\nextra", system)
	require.Len(t, rest, 1)
	assert.Equal(t, RoleUser, rest[0].Role)
}
