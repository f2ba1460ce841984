// Package transport defines the socket roles used between the bus and its
// clients. Concrete bindings live in the zmq, natsbus and inproc
// subpackages; driver selects one from config.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned (wrapped) by every role once Close has been called.
var ErrClosed = errors.New("transport: closed")

// Ingress is the bus's routing receive side. Each inbound message arrives as
// an identity frame followed by a payload frame.
type Ingress interface {
	RecvIdentity() ([]byte, error)
	RecvPayload() ([]byte, error)
	Close() error
}

// Publisher broadcasts a payload to every subscriber of one endpoint.
type Publisher interface {
	Send(payload []byte) error
	Close() error
}

// Sender delivers payloads to the bus ingress.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// Receiver yields payloads from one or more bus publishers.
type Receiver interface {
	Recv() ([]byte, error)
	Close() error
}

// Factory opens the four roles for one transport binding.
type Factory interface {
	Name() string
	ListenIngress(ctx context.Context, addr string) (Ingress, error)
	ListenPublisher(ctx context.Context, addr string) (Publisher, error)
	DialSender(ctx context.Context, addr string) (Sender, error)
	DialReceiver(ctx context.Context, addrs []string) (Receiver, error)
}
