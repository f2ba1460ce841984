// Package responder answers multiply requests seen on the bus publishers by
// sending the product back through the bus ingress under the same
// correlation id.
package responder

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgebus/internal/observability"
	"github.com/danmuck/edgebus/internal/protocol"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/rs/zerolog/log"
)

const DefaultLogEvery = 25_000

type Sender interface {
	Send(payload []byte) error
}

type Receiver interface {
	Recv() ([]byte, error)
}

type Responder struct {
	node      string
	sender    Sender
	logEvery  uint64
	processed atomic.Uint64
}

func New(node string, sender Sender, logEvery int) *Responder {
	if node == "" {
		node = "responder"
	}
	if logEvery <= 0 {
		logEvery = DefaultLogEvery
	}
	return &Responder{node: node, sender: sender, logEvery: uint64(logEvery)}
}

func (r *Responder) Processed() uint64 { return r.processed.Load() }

// Handle answers one frame. Frames that are not multiply requests are
// ignored and return nil.
func (r *Responder) Handle(frame []byte) error {
	kind, rest, err := protocol.DecodeKind(frame)
	if err != nil {
		observability.RecordResponder(r.node, "decode_error")
		log.Error().Msgf("responder.Responder.Handle decode kind failed err=%v", err)
		return err
	}
	if kind != protocol.KindMultiplyRequest {
		log.Trace().Msgf("responder.Responder.Handle ignored kind=%s", kind)
		return nil
	}

	id, body := protocol.DecodeCorrelationID(rest)
	req, err := protocol.DecodePayload[protocol.MultiplyRequest](body)
	if err != nil {
		observability.RecordResponder(r.node, "malformed")
		log.Error().Msgf("responder.Responder.Handle decode payload failed id=%s err=%v", id, err)
		return err
	}

	out, err := protocol.EncodeMessage(id, protocol.MultiplyResponse{Result: req.Product()})
	if err != nil {
		observability.RecordResponder(r.node, "encode_error")
		log.Error().Msgf("responder.Responder.Handle encode failed id=%s err=%v", id, err)
		return err
	}
	if err := r.sender.Send(out); err != nil {
		observability.RecordResponder(r.node, "send_error")
		log.Error().Msgf("responder.Responder.Handle send failed id=%s err=%v", id, err)
		return err
	}

	observability.RecordResponder(r.node, "handled")
	log.Trace().Msgf("responder.Responder.Handle id=%s bytes=%d", id, len(out))
	if n := r.processed.Add(1); n%r.logEvery == 0 {
		log.Debug().Msgf("responder.Responder processed total=%d at=%s", n, time.Now().Format(time.RFC3339Nano))
	}
	return nil
}

// Run handles frames from recv until it is closed.
func (r *Responder) Run(ctx context.Context, recv Receiver) error {
	log.Info().Msgf("responder.Responder.Run start node=%s", r.node)
	for {
		frame, err := recv.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.Error().Msgf("responder.Responder.Run recv failed err=%v", err)
			continue
		}
		_ = r.Handle(frame)
	}
}
