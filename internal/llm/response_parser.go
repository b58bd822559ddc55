package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFences removes every line that starts with a markdown fence
// (``` or ```json). Models wrap JSON in fences even when told not to.
func StripCodeFences(response string) string {
	lines := strings.Split(response, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ParseLLMJSONResponse decodes a JSON object from a model response into
// target. It first tries the fence-stripped text, then the outermost brace
// span. A *JSONParseError is returned when neither decodes.
func ParseLLMJSONResponse(response string, target interface{}) error {
	cleaned := StripCodeFences(response)
	err := json.Unmarshal([]byte(cleaned), target)
	if err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err = json.Unmarshal([]byte(cleaned[start:end+1]), target); err == nil {
			return nil
		}
	}

	return &JSONParseError{Response: response, Message: "could not parse JSON object", Err: err}
}

// JSONParseError represents an error that occurred while parsing LLM JSON response.
type JSONParseError struct {
	Response string
	Message  string
	Err      error
}

func (e *JSONParseError) Error() string {
	return e.Message + ": " + TruncateForError(e.Response, 200)
}

func (e *JSONParseError) Unwrap() error {
	return e.Err
}

// TruncateForError truncates a string for error messages.
func TruncateForError(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
