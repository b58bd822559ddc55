package llm

import (
	"context"
	"errors"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrUnknownModel is returned when a model id is not in the router catalog.
var ErrUnknownModel = errors.New("unknown model")

// Message represents a chat message in provider-neutral form. Assistant
// messages may carry ToolCalls. Tool messages answer exactly one call and
// reference it through ToolID and ToolName.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolID    string     `json:"tool_id,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

// ToolCall is one function invocation requested by the model. Arguments are
// a decoded JSON object regardless of how the backend delivered them, or nil
// when the backend sent something that does not decode to an object.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolChoiceMode controls whether the model may, must or must not call tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto   ToolChoiceMode = "auto"
	ToolChoiceNone   ToolChoiceMode = "none"
	ToolChoiceForced ToolChoiceMode = "forced"
)

// ToolChoice selects the tool calling policy. Name is only used with
// ToolChoiceForced.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ForceTool returns a ToolChoice that requires a call to name.
func ForceTool(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceForced, Name: name}
}

// CompletionRequest represents a completion request. Tools use the
// OpenAI function schema ({"type":"function","function":{...}}); each
// backend converts them to its own shape.
type CompletionRequest struct {
	Messages     []*Message               `json:"messages"`
	Tools        []map[string]interface{} `json:"tools,omitempty"`
	ToolChoice   ToolChoice               `json:"-"`
	Temperature  float64                  `json:"temperature"`
	MaxTokens    int                      `json:"max_tokens,omitempty"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
}

// Usage reports token consumption of one call. Estimated is set when the
// backend reported nothing and the router counted locally.
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Estimated    bool `json:"estimated,omitempty"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// Client is the interface for LLM backends bound to a single provider model.
type Client interface {
	// CompleteWithRequest sends a completion request and returns the response
	CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// GetModelName returns the provider model name
	GetModelName() string
}

// splitSystem separates system content from the conversation. The request
// level SystemPrompt comes first, followed by system messages in order.
func splitSystem(req *CompletionRequest) (string, []*Message) {
	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	rest := make([]*Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		}
		rest = append(rest, msg)
	}

	return joinNonEmpty(system, "\n\n"), rest
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
