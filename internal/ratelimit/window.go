package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/recipecast/api/internal/apperr"
)

// Limiter gates calls into a paid upstream. Acquire returns an error matching
// apperr.ErrRateLimitExceeded when the budget for the current window is spent.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Window is a fixed-window counter: the count resets wholesale once the
// window has elapsed rather than leaking continuously.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Option customizes a Window.
type Option func(*Window)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// NewWindow creates a window allowing limit calls per window duration.
func NewWindow(limit int, window time.Duration, opts ...Option) *Window {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}

	w := &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.windowStart = w.now()
	return w
}

// TryAcquire takes one slot if available.
func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.windowStart) >= w.window {
		w.count = 0
		w.windowStart = now
	}

	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// Acquire takes one slot or fails without waiting.
func (w *Window) Acquire(_ context.Context) error {
	if !w.TryAcquire() {
		return apperr.ErrRateLimitExceeded
	}
	return nil
}

// Remaining returns the slots left in the current window.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.now().Sub(w.windowStart) >= w.window {
		return w.limit
	}
	return w.limit - w.count
}

// Limit returns the configured per-window limit.
func (w *Window) Limit() int {
	return w.limit
}
