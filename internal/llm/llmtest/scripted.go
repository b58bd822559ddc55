// Package llmtest provides a scripted llm.Chatter for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/codefionn/hyphertext/internal/llm"
)

// Step is one canned reply. A non-nil Err fails the call instead.
type Step struct {
	Response llm.CompletionResponse
	Err      error
}

// Text replies with plain content.
func Text(content string) Step {
	return Step{Response: llm.CompletionResponse{Content: content, StopReason: "end_turn", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}}
}

// Calls replies with tool calls.
func Calls(calls ...llm.ToolCall) Step {
	return Step{Response: llm.CompletionResponse{ToolCalls: calls, StopReason: "tool_use", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}}
}

// Call builds a tool call with a generated id.
func Call(name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: "call_" + name, Name: name, Arguments: args}
}

// Failure fails the call.
func Failure(err error) Step {
	return Step{Err: err}
}

// Chatter replays steps in order and records every request. Running out of
// steps is an error.
type Chatter struct {
	mu       sync.Mutex
	steps    []Step
	Requests []*llm.CompletionRequest
	Models   []string
}

// New creates a Chatter replaying steps.
func New(steps ...Step) *Chatter {
	return &Chatter{steps: steps}
}

// Chat implements llm.Chatter.
func (c *Chatter) Chat(ctx context.Context, modelID string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snapshot := *req
	snapshot.Messages = append([]*llm.Message(nil), req.Messages...)
	c.Requests = append(c.Requests, &snapshot)
	c.Models = append(c.Models, modelID)

	if len(c.steps) == 0 {
		return nil, fmt.Errorf("llmtest: no scripted reply for call %d", len(c.Requests))
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := step.Response
	return &resp, nil
}

// Count returns how many requests were made.
func (c *Chatter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Last returns the most recent request.
func (c *Chatter) Last() *llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return nil
	}
	return c.Requests[len(c.Requests)-1]
}
