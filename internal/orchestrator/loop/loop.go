package loop

import (
	"context"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/tools"
)

// State manages the iteration state of one loop run.
type State interface {
	// Iteration returns the number of iterations started so far
	Iteration() int

	// Increment advances the iteration counter and returns the new count
	Increment() int

	// MaxIterations returns the maximum number of iterations allowed
	MaxIterations() int

	// HasReachedLimit returns true if the maximum iteration limit has been reached
	HasReachedLimit() bool

	// AddTokens accumulates token usage and returns the new total
	AddTokens(n int) int

	// TokensUsed returns the accumulated token usage
	TokensUsed() int
}

// IterationResult represents the outcome of a single loop iteration
type IterationResult int

const (
	// Continue indicates the loop should continue to the next iteration
	Continue IterationResult = iota

	// Break indicates the model answered without calling a tool
	Break

	// BreakTerminal indicates a terminal tool call ended the loop
	BreakTerminal

	// BreakMaxIterations indicates the loop stopped due to hitting the iteration limit
	BreakMaxIterations

	// Error indicates an error occurred during iteration
	Error
)

// String returns a human-readable description of the iteration result
func (r IterationResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Break:
		return "break"
	case BreakTerminal:
		return "break_terminal"
	case BreakMaxIterations:
		return "break_max_iterations"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Iteration executes a single iteration of the loop.
type Iteration interface {
	// Execute runs a single iteration of the loop.
	// Returns the result and any error that occurred.
	Execute(ctx context.Context, state State) (*IterationOutcome, error)
}

// IterationOutcome contains the detailed results of a single iteration
type IterationOutcome struct {
	// Result indicates the overall outcome type
	Result IterationResult

	// Error contains any error that occurred (if Result is Error)
	Error error

	// Content contains the assistant's response content
	Content string

	// ToolCalls contains the tool calls requested by the assistant
	ToolCalls []llm.ToolCall

	// Results holds the executed tool calls in order
	Results []tools.Result

	// Terminal is the call that ended the loop (if Result is BreakTerminal)
	Terminal *tools.Result

	// Usage is the token usage of this iteration's model call
	Usage llm.Usage
}

// Strategy determines when the loop should continue or terminate.
type Strategy interface {
	// ShouldContinue determines if the loop should continue after an iteration.
	ShouldContinue(state State, outcome *IterationOutcome) bool

	// GetResult returns the final Result based on the loop's termination state.
	GetResult(state State, lastOutcome *IterationOutcome, terminatedEarly bool) *Result
}

// Result represents the final outcome of the loop
type Result struct {
	// Reason is why the loop terminated
	Reason IterationResult

	// Terminal is the terminal tool call, nil unless Reason is BreakTerminal
	Terminal *tools.Result

	// FinalContent is the last text the model produced without tool calls
	FinalContent string

	// IterationsExecuted is the total number of iterations run
	IterationsExecuted int

	// TokensUsed is the accumulated token usage of all iterations
	TokensUsed int

	// Error contains any error that caused termination (if applicable)
	Error error
}

// Exhausted reports whether the loop ended without a terminal tool call.
func (r *Result) Exhausted() bool {
	return r.Reason == Break || r.Reason == BreakMaxIterations
}

// Config contains configuration options for the loop
type Config struct {
	// MaxIterations is the maximum number of model calls (default: 15)
	MaxIterations int
}

// DefaultConfig returns the planned orchestrator's loop settings.
func DefaultConfig() *Config {
	return &Config{MaxIterations: consts.MaxToolIterations}
}

// Loop runs iterations until the strategy stops it.
type Loop interface {
	Run(ctx context.Context) (*Result, error)
}
