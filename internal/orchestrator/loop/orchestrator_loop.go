package loop

import (
	"context"
	"fmt"
)

// OrchestratorLoop is the main implementation of the Loop interface.
// It runs iterations until the strategy stops it or the limit is reached.
type OrchestratorLoop struct {
	state     State
	strategy  Strategy
	iteration Iteration
}

// Run executes the loop until completion or termination. Model and handler
// failures are returned together with the partial result.
func (l *OrchestratorLoop) Run(ctx context.Context) (*Result, error) {
	var lastOutcome *IterationOutcome

	for !l.state.HasReachedLimit() {
		if err := ctx.Err(); err != nil {
			result := l.strategy.GetResult(l.state, &IterationOutcome{Result: Error, Error: err}, true)
			return result, err
		}

		l.state.Increment()
		outcome, err := l.iteration.Execute(ctx, l.state)
		if err != nil {
			if outcome == nil {
				outcome = &IterationOutcome{Result: Error, Error: err}
			}
			return l.strategy.GetResult(l.state, outcome, true), err
		}
		lastOutcome = outcome

		if !l.strategy.ShouldContinue(l.state, outcome) {
			break
		}
	}

	return l.strategy.GetResult(l.state, lastOutcome, false), nil
}

// Builder provides a fluent interface for constructing OrchestratorLoop instances
type Builder struct {
	config    *Config
	iteration Iteration
}

// NewBuilder creates a new Builder with default configuration
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithMaxIterations overrides the iteration limit
func (b *Builder) WithMaxIterations(n int) *Builder {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	cfg := *b.config
	cfg.MaxIterations = n
	b.config = &cfg
	return b
}

// WithIteration sets the iteration executor
func (b *Builder) WithIteration(iteration Iteration) *Builder {
	b.iteration = iteration
	return b
}

// Build constructs the OrchestratorLoop
func (b *Builder) Build() (*OrchestratorLoop, error) {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	if b.config.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", b.config.MaxIterations)
	}
	if b.iteration == nil {
		return nil, fmt.Errorf("iteration executor is required")
	}

	return &OrchestratorLoop{
		state:     NewDefaultState(b.config),
		strategy:  NewDefaultStrategy(b.config),
		iteration: b.iteration,
	}, nil
}
