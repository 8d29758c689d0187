package agent

import (
	"errors"
	"sync"
)

// ErrTurnLimit is returned by TurnLimiter.Acquire once the cap is reached.
var ErrTurnLimit = errors.New("agent: turn limit reached")

// TurnLimiter caps the number of model calls of a single run.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing max turns. Zero means unlimited.
func NewTurnLimiter(max int) *TurnLimiter {
	if max < 0 {
		max = 0
	}
	return &TurnLimiter{max: max}
}

// Acquire reserves the next turn. It fails without counting once max turns
// have been taken.
func (l *TurnLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return ErrTurnLimit
	}
	l.count++
	return nil
}

// Count returns the number of turns taken.
func (l *TurnLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns the turns left, or -1 when unlimited.
func (l *TurnLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}
	return l.max - l.count
}
