package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/edgebus/internal/observability"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrIdentityFrame = errors.New("bus: identity frame")
	ErrPayloadFrame  = errors.New("bus: payload frame")
)

const DefaultLogEvery = 25_000

// Ingress yields one identity frame then one payload frame per message.
type Ingress interface {
	RecvIdentity() ([]byte, error)
	RecvPayload() ([]byte, error)
}

// Dispatcher moves messages from the ingress (or the retry queue, which
// takes precedence) onto the pool.
type Dispatcher struct {
	ingress   Ingress
	pool      *Pool
	node      string
	logEvery  uint64
	processed atomic.Uint64
}

func NewDispatcher(ingress Ingress, pool *Pool, logEvery int) *Dispatcher {
	if logEvery <= 0 {
		logEvery = DefaultLogEvery
	}
	return &Dispatcher{
		ingress:  ingress,
		pool:     pool,
		node:     pool.node,
		logEvery: uint64(logEvery),
	}
}

// Processed is the number of messages handed to the pool so far.
func (d *Dispatcher) Processed() uint64 {
	return d.processed.Load()
}

// Step dispatches one message. A frame read failure drops the message and
// is returned wrapped in ErrIdentityFrame or ErrPayloadFrame; a failed send
// returns the pool's *SendError.
func (d *Dispatcher) Step() error {
	payload, fromRetry := d.pool.retry.Pop()
	if fromRetry {
		observability.SetBusRetryDepth(d.node, d.pool.retry.Len())
		log.Debug().Msgf("bus.Dispatcher.Step retrying bytes=%d", len(payload))
	} else {
		identity, err := d.ingress.RecvIdentity()
		if err != nil {
			observability.RecordBusIngressDrop(d.node, "identity")
			log.Error().Msgf("bus.Dispatcher.Step identity recv failed err=%v", err)
			return fmt.Errorf("%w: %w", ErrIdentityFrame, err)
		}
		log.Trace().Msgf("bus.Dispatcher.Step identity=%x", identity)

		payload, err = d.ingress.RecvPayload()
		if err != nil {
			observability.RecordBusIngressDrop(d.node, "payload")
			log.Error().Msgf("bus.Dispatcher.Step payload recv failed err=%v", err)
			return fmt.Errorf("%w: %w", ErrPayloadFrame, err)
		}
	}

	err := d.pool.Dispatch(payload)
	n := d.processed.Add(1)
	if n%d.logEvery == 0 {
		log.Debug().Msgf("bus.Dispatcher.Step processed=%d retry_depth=%d", n, d.pool.retry.Len())
	}
	return err
}

// Run steps until ctx is done or the ingress is closed. Per-message errors
// are logged by Step and do not stop the loop. A publisher that reports
// itself closed is a send failure like any other: its payload is already
// requeued.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Msgf("bus.Dispatcher.Run start node=%s publishers=%d", d.node, d.pool.Len())
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := d.Step()
		if err == nil {
			continue
		}
		var sendErr *SendError
		if errors.As(err, &sendErr) {
			continue
		}
		if errors.Is(err, transport.ErrClosed) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
