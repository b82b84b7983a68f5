package transport

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// MinIntentInterval is the minimum time between two intents of the same player.
const MinIntentInterval = 500 * time.Millisecond

type PublishIntentFunc func(ctx context.Context, i model.StrategyIntent) error

// IntentThrottle limits intent publishing to one per interval. An intent submitted inside the
// window is kept and sent by the next Flush after the window closed; only the latest one
// survives since every intent carries the full selection.
type IntentThrottle struct {
	publish  PublishIntentFunc
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	pending *model.StrategyIntent
}

type ThrottleOption func(*IntentThrottle)

func WithInterval(d time.Duration) ThrottleOption {
	return func(t *IntentThrottle) { t.interval = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *IntentThrottle) { t.now = now }
}

func NewIntentThrottle(publish PublishIntentFunc, opts ...ThrottleOption) *IntentThrottle {
	t := &IntentThrottle{
		publish:  publish,
		interval: MinIntentInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.interval = max(t.interval, MinIntentInterval)
	return t
}

// Submit publishes i right away if the window is open, otherwise it is kept as pending.
// It reports whether i was published.
func (t *IntentThrottle) Submit(ctx context.Context, i model.StrategyIntent) (bool, error) {
	t.mu.Lock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.pending = &i
		t.mu.Unlock()
		return false, nil
	}
	t.last = now
	t.pending = nil
	t.mu.Unlock()
	return true, t.publish(ctx, i)
}

// Flush publishes the pending intent once the window is open again.
func (t *IntentThrottle) Flush(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.pending == nil || t.now().Sub(t.last) < t.interval {
		t.mu.Unlock()
		return false, nil
	}
	i := *t.pending
	t.pending = nil
	t.last = t.now()
	t.mu.Unlock()
	return true, t.publish(ctx, i)
}

// Pending returns the intent waiting for the window to open.
func (t *IntentThrottle) Pending() (model.StrategyIntent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return model.StrategyIntent{}, false
	}
	return *t.pending, true
}
