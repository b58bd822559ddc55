package loop

import "sync"

// DefaultState implements the State interface with thread-safe counters.
type DefaultState struct {
	mu sync.RWMutex

	iteration     int
	maxIterations int
	tokens        int
}

// NewDefaultState creates a new DefaultState with the specified configuration
func NewDefaultState(config *Config) *DefaultState {
	if config == nil {
		config = DefaultConfig()
	}
	return &DefaultState{maxIterations: config.MaxIterations}
}

// Iteration returns the number of iterations started so far
func (s *DefaultState) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// Increment advances the iteration counter and returns the new count
func (s *DefaultState) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// MaxIterations returns the maximum number of iterations allowed
func (s *DefaultState) MaxIterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxIterations
}

// HasReachedLimit returns true if the maximum iteration limit has been reached
func (s *DefaultState) HasReachedLimit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration >= s.maxIterations
}

// AddTokens accumulates token usage and returns the new total
func (s *DefaultState) AddTokens(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens += n
	return s.tokens
}

// TokensUsed returns the accumulated token usage
func (s *DefaultState) TokensUsed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}
