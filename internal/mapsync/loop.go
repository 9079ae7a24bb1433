package mapsync

import "sync"

// Scheduler defers work to the end of the current UI update cycle.
type Scheduler interface {
	Defer(fn func())
}

// Loop is a Scheduler drained explicitly by whoever owns the update cycle.
type Loop struct {
	mu    sync.Mutex
	queue []func()
}

// NewLoop returns an empty loop.
func NewLoop() *Loop {
	return &Loop{}
}

// Defer queues fn for the next Flush.
func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush runs queued tasks in order until the queue is empty, including
// tasks queued by the tasks it runs. It returns the number of tasks run.
func (l *Loop) Flush() int {
	ran := 0
	for {
		l.mu.Lock()
		queue := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(queue) == 0 {
			return ran
		}
		for _, fn := range queue {
			fn()
			ran++
		}
	}
}
