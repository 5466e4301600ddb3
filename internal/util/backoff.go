package util

import "time"

// Backoff is an exponential backoff calculator for retry loops that run on a
// single goroutine. It is not safe for concurrent use.
type Backoff struct {
	current  time.Duration
	initial  time.Duration
	maxDelay time.Duration
}

// NewBackoff returns a Backoff that doubles from initial up to maxDelay.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{
		current:  initial,
		initial:  initial,
		maxDelay: maxDelay,
	}
}

// Next returns the current delay and advances to the next value.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current = min(b.current*2, b.maxDelay)
	return d
}

// Reset sets the backoff back to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
