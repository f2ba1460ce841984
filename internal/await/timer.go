package await

import (
	"sync"
	"time"
)

type timerRequest struct {
	w     *Waker
	sleep time.Duration
}

// Timer is a single worker that serves deadline wakes one after another in
// arrival order. The queue is unbounded.
type Timer struct {
	mu     sync.Mutex
	queue  []timerRequest
	closed bool
	notify chan struct{}
	done   chan struct{}
	exited chan struct{}
}

func NewTimer() *Timer {
	t := &Timer{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go t.run()
	return t
}

// Submit queues a wake of w after sleep.
func (t *Timer) Submit(w *Waker, sleep time.Duration) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		panic("await: submit on closed timer")
	}
	t.queue = append(t.queue, timerRequest{w: w, sleep: sleep})
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued requests not yet picked up.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Close stops the worker and waits for it to exit.
func (t *Timer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	t.mu.Unlock()
	<-t.exited
}

func (t *Timer) run() {
	defer close(t.exited)
	for {
		req, ok := t.next()
		if !ok {
			select {
			case <-t.done:
				return
			case <-t.notify:
			}
			continue
		}
		if req.w.Done() {
			continue
		}

		sleep := time.NewTimer(req.sleep)
		select {
		case <-t.done:
			sleep.Stop()
			return
		case <-req.w.finished:
			// task completed through another future; drop the stale wake
			sleep.Stop()
			continue
		case <-sleep.C:
		}
		req.w.Wake()
	}
}

func (t *Timer) next() (timerRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return timerRequest{}, false
	}
	req := t.queue[0]
	t.queue[0] = timerRequest{}
	t.queue = t.queue[1:]
	return req, true
}
