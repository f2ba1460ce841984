package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/edgebus/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrEmptyPool = errors.New("bus: publisher pool is empty")

// Publisher is one broadcast endpoint in the pool.
type Publisher interface {
	Send(payload []byte) error
}

// SendError reports a failed dispatch. The payload has already been queued
// for retry when this is returned.
type SendError struct {
	Slot int
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("bus: publisher %d send failed: %v", e.Slot, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

type slot struct {
	pub        Publisher
	lastAction time.Duration
}

// Pool selects publishers in least-recently-used order. Last-action times
// are kept relative to the pool's creation epoch and start at zero.
type Pool struct {
	mu    sync.Mutex
	slots []slot
	retry *RetryQueue
	now   func() time.Time
	epoch time.Time
	node  string
}

type PoolOption func(*Pool)

// WithClock replaces time.Now. The epoch is read from the clock once, after
// all options apply.
func WithClock(now func() time.Time) PoolOption {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithNode sets the label used on logs and metrics.
func WithNode(node string) PoolOption {
	return func(p *Pool) {
		p.node = node
	}
}

func NewPool(publishers []Publisher, retry *RetryQueue, opts ...PoolOption) (*Pool, error) {
	if len(publishers) == 0 {
		return nil, ErrEmptyPool
	}
	if retry == nil {
		retry = NewRetryQueue()
	}
	p := &Pool{
		slots: make([]slot, len(publishers)),
		retry: retry,
		now:   time.Now,
		node:  "bus",
	}
	for i, pub := range publishers {
		p.slots[i] = slot{pub: pub}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.epoch = p.now()
	return p, nil
}

func (p *Pool) Len() int { return len(p.slots) }

func (p *Pool) Retry() *RetryQueue { return p.retry }

// SelectTarget returns the slot with the oldest last action.
func (p *Pool) SelectTarget() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectLocked()
}

func (p *Pool) selectLocked() int {
	best := 0
	for i := 1; i < len(p.slots); i++ {
		if p.slots[i].lastAction < p.slots[best].lastAction {
			best = i
		}
	}
	return best
}

// LastAction returns slot i's last-action time relative to the epoch.
func (p *Pool) LastAction(i int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[i].lastAction
}

// LastActions copies every slot's last-action time.
func (p *Pool) LastActions() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.slots))
	for i, s := range p.slots {
		out[i] = s.lastAction
	}
	return out
}

// Dispatch sends payload on the least recently used publisher. The slot's
// last-action time moves to now whether or not the send succeeds, so a
// failing publisher rotates to the back of the order. On failure the
// payload goes to the retry queue and a *SendError is returned.
func (p *Pool) Dispatch(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.selectLocked()
	err := p.slots[idx].pub.Send(payload)
	p.slots[idx].lastAction = p.now().Sub(p.epoch)

	observability.RecordBusDispatch(p.node, idx, err == nil)
	if err != nil {
		p.retry.Push(payload)
		depth := p.retry.Len()
		observability.SetBusRetryDepth(p.node, depth)
		log.Error().Msgf("bus.Pool.Dispatch send failed slot=%d retry_depth=%d err=%v", idx, depth, err)
		return &SendError{Slot: idx, Err: err}
	}
	log.Trace().Msgf("bus.Pool.Dispatch sent slot=%d bytes=%d", idx, len(payload))
	return nil
}
