package crawler

import (
	"context"
	"sync"
)

// Frontier is the FIFO work queue shared by the workers of one crawl. It
// tracks outstanding tasks (pushed but not yet marked Done) and closes the
// Drained channel when that count returns to zero.
type Frontier struct {
	mu          sync.Mutex
	items       []CrawlTask
	capacity    int
	outstanding int
	closed      bool

	signal  chan struct{}
	done    chan struct{}
	drained chan struct{}
	drainMu sync.Once
}

// NewFrontier creates a frontier. A capacity of zero or less means unbounded.
func NewFrontier(capacity int) *Frontier {
	return &Frontier{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
}

// Push appends task without blocking.
func (f *Frontier) Push(task CrawlTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFrontierClosed
	}
	if f.capacity > 0 && len(f.items) >= f.capacity {
		return ErrFrontierFull
	}
	f.items = append(f.items, task)
	f.outstanding++
	f.notify()
	return nil
}

// Pop removes the oldest task, blocking until one is available. It returns
// ErrFrontierClosed once the frontier is closed, even if tasks remain, and
// ctx.Err() when ctx ends first.
func (f *Frontier) Pop(ctx context.Context) (CrawlTask, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return CrawlTask{}, ErrFrontierClosed
		}
		if len(f.items) > 0 {
			task := f.items[0]
			f.items[0] = CrawlTask{}
			f.items = f.items[1:]
			if len(f.items) > 0 {
				f.notify()
			}
			f.mu.Unlock()
			return task, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return CrawlTask{}, ctx.Err()
		case <-f.done:
		case <-f.signal:
		}
	}
}

// Done marks one popped task as fully processed. Children must be pushed
// before the parent's Done so the count never touches zero early.
func (f *Frontier) Done() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outstanding == 0 {
		return ErrCounterUnderflow
	}
	f.outstanding--
	if f.outstanding == 0 {
		f.drainMu.Do(func() { close(f.drained) })
	}
	return nil
}

// Drained is closed once every pushed task has been marked Done.
func (f *Frontier) Drained() <-chan struct{} {
	return f.drained
}

// Close wakes every blocked Pop and rejects further pushes. Idempotent.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Outstanding returns the number of tasks pushed but not yet Done.
func (f *Frontier) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding
}

func (f *Frontier) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}
