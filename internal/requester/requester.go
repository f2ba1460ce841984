package requester

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgebus/internal/await"
	"github.com/danmuck/edgebus/internal/correlation"
	"github.com/danmuck/edgebus/internal/observability"
	"github.com/danmuck/edgebus/internal/protocol"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownCorrelation = errors.New("requester: response for unknown correlation id")
	ErrResultMismatch     = errors.New("requester: response result mismatch")
)

const (
	DefaultBatchSize    = 25_000
	DefaultAwaitTimeout = 1000 * time.Millisecond
)

// Sender delivers encoded requests to the bus.
type Sender interface {
	Send(payload []byte) error
}

// Receiver yields encoded frames from the bus publishers.
type Receiver interface {
	Recv() ([]byte, error)
}

type Config struct {
	Node         string
	BatchSize    int
	AwaitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Node == "" {
		c.Node = "requester"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.AwaitTimeout <= 0 {
		c.AwaitTimeout = DefaultAwaitTimeout
	}
	return c
}

// Requester owns the pending table and the batch cycle.
type Requester struct {
	cfg    Config
	sender Sender
	store  *correlation.Store
	slot   *await.WakerSlot
	timer  *await.Timer

	newID    func() uuid.UUID
	operand  func() int64
	sent     atomic.Uint64
	resent   atomic.Uint64
	received atomic.Uint64
}

type Option func(*Requester)

// WithIDSource replaces uuid.New for fresh requests.
func WithIDSource(next func() uuid.UUID) Option {
	return func(r *Requester) {
		if next != nil {
			r.newID = next
		}
	}
}

// WithOperandSource replaces the random source of value and multiplier.
func WithOperandSource(next func() int64) Option {
	return func(r *Requester) {
		if next != nil {
			r.operand = next
		}
	}
}

func New(cfg Config, sender Sender, opts ...Option) *Requester {
	r := &Requester{
		cfg:     cfg.withDefaults(),
		sender:  sender,
		store:   correlation.NewStore(),
		slot:    &await.WakerSlot{},
		timer:   await.NewTimer(),
		newID:   uuid.New,
		operand: randomOperand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func randomOperand() int64 {
	return int64(rand.Intn(256))
}

func (r *Requester) Store() *correlation.Store { return r.store }

// Close stops the deadline timer. The requester is unusable afterwards.
func (r *Requester) Close() {
	r.timer.Close()
}

// Counters reports totals of sent, resent and matched messages.
func (r *Requester) Counters() (sent, resent, received uint64) {
	return r.sent.Load(), r.resent.Load(), r.received.Load()
}

// Await blocks until the pending table is empty or AwaitTimeout elapses.
// It returns nil in the first case and a snapshot of every still-pending
// entry in the second.
func (r *Requester) Await() []correlation.Pending {
	empty := await.NewEmptyCondition(r.store, r.slot)
	deadline := await.NewDeadline(r.timer, r.cfg.AwaitTimeout)

	if await.Race(empty, deadline) == 0 {
		observability.RecordRequesterCycle(r.cfg.Node, "drained")
		log.Trace().Msg("requester.Requester.Await drained")
		return nil
	}

	resend := r.store.Snapshot()
	observability.RecordRequesterCycle(r.cfg.Node, "deadline")
	log.Debug().Msgf(
		"requester.Requester.Await deadline pending=%d oldest=%s",
		len(resend),
		oldestAge(resend, time.Now()),
	)
	return resend
}

func oldestAge(pending []correlation.Pending, now time.Time) time.Duration {
	var oldest time.Duration
	for _, p := range pending {
		oldest = max(oldest, p.Age(now))
	}
	return oldest
}

// Cycle waits out the current window and sends the next batch. It returns
// the number of messages sent.
func (r *Requester) Cycle(ctx context.Context) int {
	return r.SendBatch(ctx, r.Await())
}

// SendBatch sends BatchSize messages: the resend entries first, as they are
// and without touching the table, then fresh requests which are inserted
// before they are sent. A message that fails to encode or send does not
// count toward the batch. Resend entries beyond the batch size stay pending
// for a later window.
func (r *Requester) SendBatch(ctx context.Context, resend []correlation.Pending) int {
	sent := 0
	for sent < r.cfg.BatchSize {
		if ctx.Err() != nil {
			return sent
		}

		if len(resend) > 0 {
			p := resend[0]
			resend = resend[1:]
			if r.send(p.ID, p.Request) {
				sent++
				r.resent.Add(1)
				observability.RecordRequester(r.cfg.Node, "resent")
				r.countSent()
			}
			continue
		}

		p := correlation.NewPending(r.newID(), protocol.MultiplyRequest{
			Value:      r.operand(),
			Multiplier: r.operand(),
		})
		if err := r.store.Insert(p); err != nil {
			log.Error().Msgf("requester.Requester.SendBatch insert failed id=%s err=%v", p.ID, err)
			continue
		}
		if !r.send(p.ID, p.Request) {
			r.store.RemoveAndTake(p.ID)
			continue
		}
		sent++
		observability.RecordRequester(r.cfg.Node, "sent")
		r.countSent()
	}
	observability.SetRequesterPending(r.cfg.Node, r.store.Len())
	return sent
}

func (r *Requester) send(id uuid.UUID, req protocol.MultiplyRequest) bool {
	frame, err := protocol.EncodeMessage(id, req)
	if err != nil {
		observability.RecordRequester(r.cfg.Node, "encode_error")
		log.Error().Msgf("requester.Requester.send encode failed id=%s err=%v", id, err)
		return false
	}
	if err := r.sender.Send(frame); err != nil {
		observability.RecordRequester(r.cfg.Node, "send_error")
		log.Error().Msgf("requester.Requester.send send failed id=%s err=%v", id, err)
		return false
	}
	log.Trace().Msgf("requester.Requester.send id=%s bytes=%d", id, len(frame))
	return true
}

func (r *Requester) countSent() {
	n := r.sent.Add(1)
	if n%uint64(r.cfg.BatchSize) == 0 {
		log.Debug().Msgf("requester.Requester sent total=%d at=%s", n, time.Now().Format(time.RFC3339Nano))
	}
}

// Receive handles one frame from the bus. Frames of other kinds are ignored
// and return nil. A malformed response leaves its entry pending; a wrong
// result is reported but the entry is still removed.
func (r *Requester) Receive(frame []byte) error {
	kind, rest, err := protocol.DecodeKind(frame)
	if err != nil {
		observability.RecordRequester(r.cfg.Node, "decode_error")
		log.Error().Msgf("requester.Requester.Receive decode kind failed err=%v", err)
		return err
	}
	if kind != protocol.KindMultiplyResponse {
		log.Trace().Msgf("requester.Requester.Receive ignored kind=%s", kind)
		return nil
	}

	id, body := protocol.DecodeCorrelationID(rest)
	pending, ok := r.store.Get(id)
	if !ok {
		observability.RecordRequester(r.cfg.Node, "unknown")
		log.Error().Msgf("requester.Requester.Receive unknown id=%s", id)
		return fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}

	resp, err := protocol.DecodePayload[protocol.MultiplyResponse](body)
	if err != nil {
		observability.RecordRequester(r.cfg.Node, "malformed")
		log.Error().Msgf("requester.Requester.Receive decode payload failed id=%s err=%v", id, err)
		return err
	}

	var result error
	if resp.Result != pending.Expected {
		observability.RecordRequester(r.cfg.Node, "mismatch")
		log.Error().Msgf(
			"requester.Requester.Receive mismatch id=%s expected=%d got=%d",
			id,
			pending.Expected,
			resp.Result,
		)
		result = fmt.Errorf("%w: id=%s expected=%d got=%d", ErrResultMismatch, id, pending.Expected, resp.Result)
	} else {
		observability.RecordRequester(r.cfg.Node, "received")
		if n := r.received.Add(1); n%uint64(r.cfg.BatchSize) == 0 {
			log.Debug().Msgf("requester.Requester received total=%d at=%s", n, time.Now().Format(time.RFC3339Nano))
		}
	}

	if _, removed := r.store.RemoveAndTake(id); !removed {
		// A duplicate response raced this one to the entry.
		return result
	}
	if r.store.IsEmpty() {
		r.slot.WakeAndClear()
		log.Trace().Msg("requester.Requester.Receive table drained")
	} else {
		log.Trace().Msgf("requester.Requester.Receive pending=%d", r.store.Len())
	}
	return result
}

// ReceiveLoop feeds frames from recv into Receive until recv is closed.
func (r *Requester) ReceiveLoop(ctx context.Context, recv Receiver) error {
	for {
		frame, err := recv.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.Error().Msgf("requester.Requester.ReceiveLoop recv failed err=%v", err)
			continue
		}
		log.Trace().Msgf("requester.Requester.ReceiveLoop bytes=%d", len(frame))
		_ = r.Receive(frame)
	}
}

// Run cycles until ctx is done. The receive side must be running already.
func (r *Requester) Run(ctx context.Context) error {
	log.Info().Msgf(
		"requester.Requester.Run start node=%s batch=%d await=%s",
		r.cfg.Node,
		r.cfg.BatchSize,
		r.cfg.AwaitTimeout,
	)
	for ctx.Err() == nil {
		r.Cycle(ctx)
	}
	return nil
}
