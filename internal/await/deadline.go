package await

import "time"

// Deadline completes once duration has elapsed since start. Each pending
// poll hands a fresh (waker, remaining) request to the Timer.
type Deadline struct {
	start    time.Time
	duration time.Duration
	timer    *Timer
}

func NewDeadline(timer *Timer, duration time.Duration) *Deadline {
	return NewDeadlineAt(timer, time.Now(), duration)
}

func NewDeadlineAt(timer *Timer, start time.Time, duration time.Duration) *Deadline {
	return &Deadline{start: start, duration: duration, timer: timer}
}

func (d *Deadline) Poll(w *Waker) bool {
	elapsed := time.Since(d.start)
	if elapsed >= d.duration {
		return true
	}
	d.timer.Submit(w, d.duration-elapsed)
	return false
}
