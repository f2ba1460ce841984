package await

import (
	"sync"
	"sync/atomic"
)

// Future is a poll-driven suspension point.
type Future interface {
	Poll(w *Waker) bool
}

// Waker is the wake handle of one running task.
type Waker struct {
	ch       chan struct{}
	finished chan struct{}
	done     atomic.Bool
}

func NewWaker() *Waker {
	return &Waker{
		ch:       make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

// Wake schedules another poll of the owning task. Wakes coalesce and are
// ignored once the task has finished.
func (w *Waker) Wake() {
	if w.done.Load() {
		return
	}
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Done reports whether the owning task has completed.
func (w *Waker) Done() bool {
	return w.done.Load()
}

func (w *Waker) finish() {
	if w.done.CompareAndSwap(false, true) {
		close(w.finished)
	}
}

// WakerSlot holds the waker of the single task waiting on a shared resource.
type WakerSlot struct {
	mu sync.Mutex
	w  *Waker
}

// Register stores w, replacing a previous handle of the same task or of a
// task that already finished.
func (s *WakerSlot) Register(w *Waker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil && s.w != w && !s.w.Done() {
		panic("await: second waiter registered on shared slot")
	}
	s.w = w
}

// WakeAndClear fires the stored waker once and empties the slot.
func (s *WakerSlot) WakeAndClear() bool {
	s.mu.Lock()
	w := s.w
	s.w = nil
	s.mu.Unlock()
	if w == nil {
		return false
	}
	w.Wake()
	return true
}
