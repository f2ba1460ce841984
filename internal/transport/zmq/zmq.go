// Package zmq binds the transport roles to ZeroMQ sockets: a ROUTER for bus
// ingress, PUB sockets for the bus fan-out, DEALER for request/response
// senders and a SUB connected to every bus publisher for receivers.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgebus/internal/transport"
	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrMissingFrame = errors.New("zmq: missing frame")

const dialRetry = 250 * time.Millisecond

// Factory opens ZeroMQ sockets.
type Factory struct{}

func NewFactory() Factory { return Factory{} }

func (Factory) Name() string { return "zmq" }

func (Factory) ListenIngress(ctx context.Context, addr string) (transport.Ingress, error) {
	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmq router listen %s: %w", addr, err)
	}
	log.Debug().Msgf("zmq.Factory.ListenIngress bound addr=%s", addr)
	return &RouterIngress{sock: sock}, nil
}

func (Factory) ListenPublisher(ctx context.Context, addr string) (transport.Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmq pub listen %s: %w", addr, err)
	}
	log.Debug().Msgf("zmq.Factory.ListenPublisher bound addr=%s", addr)
	return &socketSender{sock: sock, role: "pub"}, nil
}

func (Factory) DialSender(ctx context.Context, addr string) (transport.Sender, error) {
	id := zmq4.SocketIdentity("dealer-" + uuid.NewString())
	sock := zmq4.NewDealer(ctx, zmq4.WithID(id), zmq4.WithDialerRetry(dialRetry))
	if err := sock.Dial(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmq dealer dial %s: %w", addr, err)
	}
	log.Debug().Msgf("zmq.Factory.DialSender connected addr=%s", addr)
	return &socketSender{sock: sock, role: "dealer"}, nil
}

func (Factory) DialReceiver(ctx context.Context, addrs []string) (transport.Receiver, error) {
	if len(addrs) == 0 {
		return nil, errors.New("zmq sub: no endpoints")
	}
	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(dialRetry))
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmq sub subscribe: %w", err)
	}
	for _, addr := range addrs {
		if err := sock.Dial(addr); err != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("zmq sub dial %s: %w", addr, err)
		}
		log.Debug().Msgf("zmq.Factory.DialReceiver connected addr=%s", addr)
	}
	return &SubReceiver{sock: sock}, nil
}

// RouterIngress splits each ROUTER message into its identity frame and the
// payload frame that follows it.
type RouterIngress struct {
	sock    zmq4.Socket
	mu      sync.Mutex
	pending [][]byte
	closed  atomic.Bool
}

func (r *RouterIngress) RecvIdentity() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil
	msg, err := r.sock.Recv()
	if err != nil {
		return nil, wrapErr(&r.closed, "router recv", err)
	}
	if len(msg.Frames) == 0 {
		return nil, fmt.Errorf("%w: identity", ErrMissingFrame)
	}
	r.pending = msg.Frames[1:]
	return msg.Frames[0], nil
}

func (r *RouterIngress) RecvPayload() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, transport.ErrClosed
	}
	if len(r.pending) == 0 {
		return nil, fmt.Errorf("%w: payload", ErrMissingFrame)
	}
	payload := r.pending[0]
	r.pending = r.pending[1:]
	return payload, nil
}

func (r *RouterIngress) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.sock.Close()
}

type socketSender struct {
	sock   zmq4.Socket
	role   string
	closed atomic.Bool
}

func (s *socketSender) Send(payload []byte) error {
	if s.closed.Load() {
		return transport.ErrClosed
	}
	if err := s.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return wrapErr(&s.closed, s.role+" send", err)
	}
	return nil
}

func (s *socketSender) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.sock.Close()
}

// SubReceiver reads single-frame payloads from a SUB socket subscribed to
// everything.
type SubReceiver struct {
	sock   zmq4.Socket
	closed atomic.Bool
}

func (s *SubReceiver) Recv() ([]byte, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return nil, wrapErr(&s.closed, "sub recv", err)
	}
	if len(msg.Frames) == 0 {
		return nil, fmt.Errorf("%w: payload", ErrMissingFrame)
	}
	return msg.Frames[0], nil
}

func (s *SubReceiver) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.sock.Close()
}

func wrapErr(closed *atomic.Bool, op string, err error) error {
	if closed.Load() {
		return fmt.Errorf("zmq %s: %w", op, transport.ErrClosed)
	}
	return fmt.Errorf("zmq %s: %w", op, err)
}
