package loop

// DefaultStrategy keeps going while tool calls are non-terminal and the
// iteration limit is not reached.
type DefaultStrategy struct {
	config *Config
}

// NewDefaultStrategy creates a new DefaultStrategy with the specified configuration
func NewDefaultStrategy(config *Config) *DefaultStrategy {
	if config == nil {
		config = DefaultConfig()
	}
	return &DefaultStrategy{config: config}
}

// ShouldContinue determines if the loop should continue after an iteration.
func (s *DefaultStrategy) ShouldContinue(state State, outcome *IterationOutcome) bool {
	if state.HasReachedLimit() {
		return false
	}
	return outcome != nil && outcome.Result == Continue
}

// GetResult returns the final Result based on the loop's termination state.
func (s *DefaultStrategy) GetResult(state State, lastOutcome *IterationOutcome, terminatedEarly bool) *Result {
	result := &Result{
		Reason:             BreakMaxIterations,
		IterationsExecuted: state.Iteration(),
		TokensUsed:         state.TokensUsed(),
	}
	if lastOutcome == nil {
		return result
	}

	switch {
	case terminatedEarly || lastOutcome.Result == Error:
		result.Reason = Error
		result.Error = lastOutcome.Error
	case lastOutcome.Result == Continue:
		result.Reason = BreakMaxIterations
	default:
		result.Reason = lastOutcome.Result
	}
	if lastOutcome.Result == Break {
		result.FinalContent = lastOutcome.Content
	}
	result.Terminal = lastOutcome.Terminal
	return result
}
