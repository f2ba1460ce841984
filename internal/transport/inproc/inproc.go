// Package inproc implements the transport roles over Go channels. It is
// used for tests and single-process runs where every role shares one Hub.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/edgebus/internal/transport"
)

const DefaultBufferSize = 1024

var ErrAddressInUse = errors.New("inproc: address in use")

type frame struct {
	identity []byte
	payload  []byte
}

// Hub owns the named endpoints. The zero value is not usable; call NewHub.
type Hub struct {
	mu         sync.Mutex
	bufferSize int
	ingress    map[string]*ingressEndpoint
	publishers map[string]*pubEndpoint
	seq        atomic.Uint64
}

type ingressEndpoint struct {
	ch    chan frame
	bound bool
}

type pubEndpoint struct {
	mu    sync.RWMutex
	bound bool
	subs  []*receiver
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		bufferSize: bufferSize,
		ingress:    make(map[string]*ingressEndpoint),
		publishers: make(map[string]*pubEndpoint),
	}
}

func (h *Hub) Name() string { return "inproc" }

func (h *Hub) ingressFor(addr string) *ingressEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.ingress[addr]
	if !ok {
		ep = &ingressEndpoint{ch: make(chan frame, h.bufferSize)}
		h.ingress[addr] = ep
	}
	return ep
}

func (h *Hub) publisherFor(addr string) *pubEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.publishers[addr]
	if !ok {
		ep = &pubEndpoint{}
		h.publishers[addr] = ep
	}
	return ep
}

func (h *Hub) ListenIngress(ctx context.Context, addr string) (transport.Ingress, error) {
	ep := h.ingressFor(addr)
	h.mu.Lock()
	if ep.bound {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	ep.bound = true
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	return &Ingress{ch: ep.ch, ctx: ctx, cancel: cancel}, nil
}

func (h *Hub) ListenPublisher(ctx context.Context, addr string) (transport.Publisher, error) {
	ep := h.publisherFor(addr)
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.bound {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	ep.bound = true
	ctx, cancel := context.WithCancel(ctx)
	return &Publisher{ep: ep, ctx: ctx, cancel: cancel}, nil
}

func (h *Hub) DialSender(ctx context.Context, addr string) (transport.Sender, error) {
	ep := h.ingressFor(addr)
	ctx, cancel := context.WithCancel(ctx)
	identity := fmt.Sprintf("inproc-%d", h.seq.Add(1))
	return &Sender{ch: ep.ch, identity: []byte(identity), ctx: ctx, cancel: cancel}, nil
}

func (h *Hub) DialReceiver(ctx context.Context, addrs []string) (transport.Receiver, error) {
	if len(addrs) == 0 {
		return nil, errors.New("inproc receiver: no endpoints")
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &receiver{ch: make(chan []byte, h.bufferSize), ctx: ctx, cancel: cancel}
	for _, addr := range addrs {
		ep := h.publisherFor(addr)
		ep.mu.Lock()
		ep.subs = append(ep.subs, r)
		ep.mu.Unlock()
	}
	return r, nil
}

// Ingress is the receive side of a bound ingress endpoint.
type Ingress struct {
	ch      <-chan frame
	ctx     context.Context
	cancel  context.CancelFunc
	pending *frame
}

func (i *Ingress) RecvIdentity() ([]byte, error) {
	i.pending = nil
	select {
	case f := <-i.ch:
		i.pending = &f
		return f.identity, nil
	case <-i.ctx.Done():
		return nil, fmt.Errorf("inproc ingress: %w", transport.ErrClosed)
	}
}

func (i *Ingress) RecvPayload() ([]byte, error) {
	if i.ctx.Err() != nil {
		return nil, fmt.Errorf("inproc ingress: %w", transport.ErrClosed)
	}
	if i.pending == nil {
		return nil, errors.New("inproc ingress: no message pending")
	}
	f := i.pending
	i.pending = nil
	return f.payload, nil
}

func (i *Ingress) Close() error {
	i.cancel()
	return nil
}

// Sender pushes frames onto an ingress endpoint, blocking when it is full.
type Sender struct {
	ch       chan<- frame
	identity []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

func (s *Sender) Send(payload []byte) error {
	if s.ctx.Err() != nil {
		return transport.ErrClosed
	}
	buf := append([]byte(nil), payload...)
	select {
	case s.ch <- frame{identity: s.identity, payload: buf}:
		return nil
	case <-s.ctx.Done():
		return transport.ErrClosed
	}
}

func (s *Sender) Close() error {
	s.cancel()
	return nil
}

// Publisher fans each payload out to every receiver dialed to its endpoint.
// Payloads sent before a receiver dials are lost, as with a PUB socket.
type Publisher struct {
	ep     *pubEndpoint
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *Publisher) Send(payload []byte) error {
	if p.ctx.Err() != nil {
		return transport.ErrClosed
	}
	p.ep.mu.RLock()
	subs := append([]*receiver(nil), p.ep.subs...)
	p.ep.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(p.ctx, append([]byte(nil), payload...))
	}
	return nil
}

func (p *Publisher) Close() error {
	p.cancel()
	p.ep.mu.Lock()
	p.ep.bound = false
	p.ep.mu.Unlock()
	return nil
}

type receiver struct {
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *receiver) deliver(pubCtx context.Context, payload []byte) {
	select {
	case r.ch <- payload:
	case <-r.ctx.Done():
	case <-pubCtx.Done():
	}
}

func (r *receiver) Recv() ([]byte, error) {
	select {
	case b := <-r.ch:
		return b, nil
	case <-r.ctx.Done():
		return nil, fmt.Errorf("inproc receiver: %w", transport.ErrClosed)
	}
}

func (r *receiver) Close() error {
	r.cancel()
	return nil
}
