package orchestration

import (
	"errors"
	"sync"

	"github.com/koscakluka/ema-voice/core/audio"
)

// DefaultMaxRetries bounds retries per explicit listening session.
const DefaultMaxRetries = 3

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryState is a snapshot of a RetryPolicy.
type RetryState struct {
	Attempt int
	Max     int
}

func (s RetryState) Remaining() int {
	if s.Attempt >= s.Max {
		return 0
	}
	return s.Max - s.Attempt
}

// RetryPolicy bounds how often a listening session may be restarted after a
// failure. Only an explicit start resets it.
type RetryPolicy struct {
	mu      sync.Mutex
	attempt int
	max     int
}

func NewRetryPolicy(maxRetries int) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{max: maxRetries}
}

// ShouldRetry reports whether err may be retried automatically right away.
// Only unavailable capture input qualifies: it is local and cheap to check
// again. Recognition, generation and synthesis errors never do.
func (p *RetryPolicy) ShouldRetry(err error) bool {
	if !errors.Is(err, audio.ErrInputUnavailable) {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt < p.max
}

// Consume uses up one attempt, or fails with ErrRetriesExhausted.
func (p *RetryPolicy) Consume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempt >= p.max {
		return ErrRetriesExhausted
	}
	p.attempt++
	return nil
}

func (p *RetryPolicy) Reset() {
	p.mu.Lock()
	p.attempt = 0
	p.mu.Unlock()
}

func (p *RetryPolicy) State() RetryState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return RetryState{Attempt: p.attempt, Max: p.max}
}
