package engine

import (
	"context"
	"sync"
)

// Worklist is the queue of pending targets shared by a run's workers, and
// the run's visited set.
//
// Every method is safe for concurrent use. Membership checks and inserts
// happen under one lock, so two workers can never both win the same name.
type Worklist struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	seen   map[string]struct{}
	active int // jobs popped but not yet marked Done
}

// NewWorklist creates a worklist holding targets in order, without
// duplicates.
func NewWorklist(targets ...string) *Worklist {
	w := &Worklist{seen: make(map[string]struct{})}
	w.cond = sync.NewCond(&w.mu)
	for _, t := range targets {
		w.Push(t)
	}
	return w
}

// Push queues name unless it was seen before. It reports whether name was
// added.
func (w *Worklist) Push(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[name]; ok {
		return false
	}
	w.seen[name] = struct{}{}
	w.queue = append(w.queue, name)
	w.cond.Signal()
	return true
}

// Claim marks name as seen without queueing it, for work the caller does
// itself. It reports whether the caller won the name; false means some
// other job already owns it.
func (w *Worklist) Claim(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[name]; ok {
		return false
	}
	w.seen[name] = struct{}{}
	return true
}

// Seen reports whether name was pushed or claimed.
func (w *Worklist) Seen(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[name]
	return ok
}

// Len returns the number of queued targets.
func (w *Worklist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Pop removes the head of the queue. Every successful Pop must be followed
// by exactly one [Worklist.Done] once the job has finished.
//
// While the queue is empty but some job is still active, Pop blocks: that job
// may push more work. It returns false once the queue is empty with no
// active job left, or when ctx is cancelled.
func (w *Worklist) Pop(ctx context.Context) (string, bool) {
	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		w.cond.Broadcast()
		w.mu.Unlock()
	})
	defer stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 && w.active > 0 && ctx.Err() == nil {
		w.cond.Wait()
	}
	if ctx.Err() != nil || len(w.queue) == 0 {
		return "", false
	}

	name := w.queue[0]
	w.queue[0] = ""
	w.queue = w.queue[1:]
	w.active++
	return name, true
}

// Done marks one popped job as finished.
func (w *Worklist) Done() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	// Waiters either have new work or may now observe the end of the run.
	w.cond.Broadcast()
}
