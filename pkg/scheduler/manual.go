package scheduler

import (
	"context"
	"sync"
	"time"
)

// Manual is a scheduler driven by Advance. Task functions run on the goroutine calling Advance.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	*task
	m        *Manual
	running  bool
	ctx      context.Context
	interval time.Duration
	next     time.Duration
	seq      int
	fn       func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Every(ctx context.Context, interval time.Duration, fn func()) Task {
	if interval <= 0 {
		panic("scheduler: non-positive interval")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{
		task:     newTask(),
		m:        m,
		ctx:      ctx,
		interval: interval,
		next:     m.now + interval,
		seq:      m.seq,
		fn:       fn,
	}
	m.tasks = append(m.tasks, t)
	return t
}

// Stop marks the task stopped. Done closes right away unless fn is running,
// in which case Advance closes it when fn returns.
func (t *manualTask) Stop() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.stopLocked()
}

func (t *manualTask) stopLocked() {
	t.task.Stop()
	if !t.running {
		t.exit()
	}
}

// Now returns the virtual time elapsed since the scheduler was created.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the virtual clock forward by d and runs every task that became due,
// in order of due time. Tasks due at the same time run in registration order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		t.next += t.interval
		t.running = true
		m.mu.Unlock()
		t.fn()
		m.mu.Lock()
		t.running = false
		if t.stopped() {
			t.exit()
		}
		m.mu.Unlock()
	}
}

// Pending returns the number of tasks not yet stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return len(m.tasks)
}

func (m *Manual) nextDue(target time.Duration) *manualTask {
	m.prune()
	var due *manualTask
	for _, t := range m.tasks {
		if t.next > target {
			continue
		}
		if due == nil || t.next < due.next || (t.next == due.next && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

func (m *Manual) prune() {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.ctx.Err() != nil {
			t.stopLocked()
		}
		if !t.stopped() {
			kept = append(kept, t)
		}
	}
	clear(m.tasks[len(kept):])
	m.tasks = kept
}
