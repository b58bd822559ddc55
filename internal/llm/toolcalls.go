package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// DecodeArguments turns tool call arguments into a JSON object. Groq and
// Anthropic deliver serialized JSON, Gemini delivers a parsed map. Empty
// input decodes to an empty map. Anything that is not an object is an error.
func DecodeArguments(raw any) (map[string]any, error) {
	switch value := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return value, nil
	case json.RawMessage:
		return decodeArgumentBytes([]byte(value))
	case []byte:
		return decodeArgumentBytes(value)
	case string:
		return decodeArgumentBytes([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("tool arguments of type %T are not JSON: %w", raw, err)
		}
		return decodeArgumentBytes(data)
	}
}

func decodeArgumentBytes(data []byte) (map[string]any, error) {
	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("tool arguments are not a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// NormalizeToolCallIDs ensures every tool call has a stable identifier.
// Some providers occasionally omit call IDs, which breaks downstream requests
// that require tool_call_id on tool messages.
func NormalizeToolCallIDs(toolCalls []ToolCall) []ToolCall {
	for i := range toolCalls {
		if strings.TrimSpace(toolCalls[i].ID) != "" {
			continue
		}
		if name := sanitizeToolName(toolCalls[i].Name); name != "" {
			toolCalls[i].ID = fmt.Sprintf("call_%s_%d", name, i+1)
		} else {
			toolCalls[i].ID = fmt.Sprintf("call_%d", i+1)
		}
	}
	return toolCalls
}

func sanitizeToolName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// functionSchema is one entry of CompletionRequest.Tools in a form the
// backends can convert without repeating map lookups.
type functionSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func parseToolSchemas(tools []map[string]interface{}) []functionSchema {
	out := make([]functionSchema, 0, len(tools))
	for _, raw := range tools {
		fn, ok := raw["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, functionSchema{Name: name, Description: desc, Parameters: params})
	}
	return out
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
