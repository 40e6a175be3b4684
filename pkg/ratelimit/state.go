// Package ratelimit implements a fixed-window request counter on top of the
// primary store. Counters live only in the primary store; when it is
// unreachable every check is allowed (fail open).
package ratelimit

import (
	"time"
)

// KeySegment is inserted between the key prefix and the identifier.
const KeySegment = "ratelimit"

// MinResetIn is the smallest reset interval reported to callers.
const MinResetIn = time.Second

// Result is the outcome of one rate limit check.
type Result struct {
	// Allowed is true while the window count is at or below the limit.
	Allowed bool `json:"allowed"`

	// Remaining is the number of further requests allowed in the window, never negative.
	Remaining int `json:"remaining"`

	// ResetIn is the time until the window resets, at least MinResetIn.
	ResetIn time.Duration `json:"reset_in"`
}

// ResetInSeconds returns ResetIn rounded up to whole seconds, as sent in
// Retry-After style headers.
func (r Result) ResetInSeconds() int {
	secs := int(r.ResetIn / time.Second)
	if r.ResetIn%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// failOpen is returned whenever the counter cannot be consulted.
func failOpen(limit int, window time.Duration) Result {
	return Result{
		Allowed:   true,
		Remaining: limit,
		ResetIn:   window,
	}
}

// evaluate turns a window count into a result.
func evaluate(count int64, limit int, resetIn time.Duration) Result {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	if resetIn < MinResetIn {
		resetIn = MinResetIn
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: int(remaining),
		ResetIn:   resetIn,
	}
}
