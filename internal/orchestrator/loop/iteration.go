package loop

import (
	"context"
	"fmt"
	"sync"

	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/tools"
)

// Session is the conversation the loop sends to the model. It grows by one
// assistant message and one tool message per call each iteration.
type Session struct {
	mu       sync.RWMutex
	messages []*llm.Message
}

// NewSession starts a conversation with a system prompt and a user turn.
func NewSession(system, user string) *Session {
	return &Session{messages: []*llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}}
}

// NewSessionFromMessages starts a conversation from prepared messages, for
// callers that replay chat history before the user turn.
func NewSessionFromMessages(messages []*llm.Message) *Session {
	return &Session{messages: append([]*llm.Message(nil), messages...)}
}

// AddMessage appends a message to the session
func (s *Session) AddMessage(msg *llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// GetMessages returns a copy of all messages in the session
func (s *Session) GetMessages() []*llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*llm.Message(nil), s.messages...)
}

// ResultHandler sees every executed tool call before the next one runs.
// Returning an error aborts the loop.
type ResultHandler func(ctx context.Context, res tools.Result) error

// Dependencies are the collaborators of a ToolIteration.
type Dependencies struct {
	Chat     llm.Chatter
	Executor *tools.Executor
	Session  *Session
	// OnResult is optional.
	OnResult ResultHandler
}

// Request holds the per-call model parameters.
type Request struct {
	ModelID     string
	ToolChoice  llm.ToolChoice
	Temperature float64
	MaxTokens   int
}

// ToolIteration calls the model once and executes the returned tool calls
// in order against the current document.
type ToolIteration struct {
	deps *Dependencies
	req  Request

	mu   sync.RWMutex
	html string
}

// NewToolIteration creates an iteration over html.
func NewToolIteration(deps *Dependencies, req Request, html string) *ToolIteration {
	return &ToolIteration{deps: deps, req: req, html: html}
}

// HTML returns the document with every applied edit.
func (it *ToolIteration) HTML() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.html
}

func (it *ToolIteration) setHTML(html string) {
	it.mu.Lock()
	it.html = html
	it.mu.Unlock()
}

// Execute runs a single iteration of the loop.
func (it *ToolIteration) Execute(ctx context.Context, state State) (*IterationOutcome, error) {
	outcome := &IterationOutcome{Result: Continue}

	req := &llm.CompletionRequest{
		Messages:    it.deps.Session.GetMessages(),
		Tools:       it.deps.Executor.Registry().ToJSONSchema(),
		ToolChoice:  it.req.ToolChoice,
		Temperature: it.req.Temperature,
		MaxTokens:   it.req.MaxTokens,
	}

	response, err := it.deps.Chat.Chat(ctx, it.req.ModelID, req)
	if err != nil {
		outcome.Result = Error
		outcome.Error = fmt.Errorf("iteration %d: %w", state.Iteration(), err)
		return outcome, outcome.Error
	}

	outcome.Usage = response.Usage
	outcome.Content = response.Content
	outcome.ToolCalls = response.ToolCalls
	state.AddTokens(response.Usage.Total())

	if len(response.ToolCalls) == 0 {
		outcome.Result = Break
		return outcome, nil
	}

	for _, call := range response.ToolCalls {
		res := it.deps.Executor.Execute(ctx, it.HTML(), call)
		if res.Changed {
			it.setHTML(res.HTML)
		}
		outcome.Results = append(outcome.Results, res)

		if it.deps.OnResult != nil {
			if err := it.deps.OnResult(ctx, res); err != nil {
				outcome.Result = Error
				outcome.Error = err
				return outcome, err
			}
		}

		if res.Terminal {
			terminal := res
			outcome.Terminal = &terminal
			outcome.Result = BreakTerminal
			return outcome, nil
		}
	}

	it.deps.Session.AddMessage(&llm.Message{
		Role:      llm.RoleAssistant,
		Content:   response.Content,
		ToolCalls: response.ToolCalls,
	})
	for _, res := range outcome.Results {
		it.deps.Session.AddMessage(&llm.Message{
			Role:     llm.RoleTool,
			Content:  res.Output,
			ToolID:   res.CallID,
			ToolName: res.Tool,
		})
	}

	return outcome, nil
}
