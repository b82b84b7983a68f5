// Package scheduler runs fixed rate tasks. The wall clock implementation is used in production,
// Manual lets tests step time explicitly.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is the cancellation handle of a scheduled function.
type Task interface {
	// Stop prevents further calls. It does not wait for a running call.
	Stop()
	// Done is closed once the task is stopped and no call of fn is running anymore.
	Done() <-chan struct{}
}

type Scheduler interface {
	// Every calls fn once per interval until the task is stopped or ctx is done.
	// Calls of one task never overlap.
	Every(ctx context.Context, interval time.Duration, fn func()) Task
}

type task struct {
	stopOnce sync.Once
	stop     chan struct{}
	exitOnce sync.Once
	exited   chan struct{}
}

func newTask() *task {
	return &task{stop: make(chan struct{}), exited: make(chan struct{})}
}

// Stop may be called from within the task function.
func (t *task) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *task) Done() <-chan struct{} {
	return t.exited
}

func (t *task) exit() {
	t.exitOnce.Do(func() { close(t.exited) })
}

func (t *task) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Ticker schedules on the wall clock.
type Ticker struct{}

func NewTicker() *Ticker {
	return &Ticker{}
}

func (s *Ticker) Every(ctx context.Context, interval time.Duration, fn func()) Task {
	t := newTask()
	go func() {
		defer t.exit()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.stop:
				return
			case <-tk.C:
				if t.stopped() {
					return
				}
				fn()
			}
		}
	}()
	return t
}
