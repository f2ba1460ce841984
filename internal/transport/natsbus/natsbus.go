// Package natsbus binds the transport roles to NATS subjects. Endpoint
// addresses are mapped onto subjects under a shared prefix so the same
// config drives both transports.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgebus/internal/transport"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// IdentityHeader carries the sender identity that a ROUTER socket would
// otherwise prepend.
const IdentityHeader = "Edgebus-Identity"

const bufferSize = 4096

// Config holds NATS connection settings.
type Config struct {
	URL            string
	SubjectPrefix  string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		SubjectPrefix:  "edgebus",
		Name:           "edgebus",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// Factory opens one NATS connection per role.
type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = def.URL
	}
	if strings.TrimSpace(cfg.SubjectPrefix) == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	return &Factory{cfg: cfg}
}

func (f *Factory) Name() string { return "nats" }

// IngressSubject is the subject senders publish to for the router at addr.
func (f *Factory) IngressSubject(addr string) string {
	return f.cfg.SubjectPrefix + ".ingress." + endpointKey(addr)
}

// PublisherSubject is the subject one bus publisher broadcasts on.
func (f *Factory) PublisherSubject(addr string) string {
	return f.cfg.SubjectPrefix + ".pub." + endpointKey(addr)
}

func (f *Factory) connect(role string) (*nats.Conn, error) {
	conn, err := nats.Connect(f.cfg.URL,
		nats.Name(f.cfg.Name+"."+role),
		nats.ReconnectWait(f.cfg.ReconnectWait),
		nats.MaxReconnects(f.cfg.MaxReconnects),
		nats.Timeout(f.cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

func (f *Factory) ListenIngress(ctx context.Context, addr string) (transport.Ingress, error) {
	conn, err := f.connect("ingress")
	if err != nil {
		return nil, err
	}
	subject := f.IngressSubject(addr)
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	log.Debug().Msgf("natsbus.Factory.ListenIngress subject=%s", subject)
	ctx, cancel := context.WithCancel(ctx)
	return &Ingress{conn: conn, sub: sub, ctx: ctx, cancel: cancel}, nil
}

func (f *Factory) ListenPublisher(_ context.Context, addr string) (transport.Publisher, error) {
	conn, err := f.connect("publisher")
	if err != nil {
		return nil, err
	}
	subject := f.PublisherSubject(addr)
	log.Debug().Msgf("natsbus.Factory.ListenPublisher subject=%s", subject)
	return &publisher{conn: conn, subject: subject}, nil
}

func (f *Factory) DialSender(_ context.Context, addr string) (transport.Sender, error) {
	conn, err := f.connect("sender")
	if err != nil {
		return nil, err
	}
	subject := f.IngressSubject(addr)
	log.Debug().Msgf("natsbus.Factory.DialSender subject=%s", subject)
	return &sender{conn: conn, subject: subject, identity: f.cfg.Name + "-" + uuid.NewString()}, nil
}

func (f *Factory) DialReceiver(ctx context.Context, addrs []string) (transport.Receiver, error) {
	if len(addrs) == 0 {
		return nil, errors.New("nats receiver: no endpoints")
	}
	conn, err := f.connect("receiver")
	if err != nil {
		return nil, err
	}
	ch := make(chan *nats.Msg, bufferSize)
	subs := make([]*nats.Subscription, 0, len(addrs))
	for _, addr := range addrs {
		subject := f.PublisherSubject(addr)
		sub, err := conn.ChanSubscribe(subject, ch)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
		log.Debug().Msgf("natsbus.Factory.DialReceiver subject=%s", subject)
	}
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &receiver{conn: conn, subs: subs, ch: ch, ctx: ctx, cancel: cancel}, nil
}

// Ingress reads request messages and surfaces the identity header as the
// first frame.
type Ingress struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	pending *nats.Msg
	closed  atomic.Bool
}

func (i *Ingress) RecvIdentity() ([]byte, error) {
	i.pending = nil
	msg, err := i.sub.NextMsgWithContext(i.ctx)
	if err != nil {
		if i.closed.Load() || i.ctx.Err() != nil {
			return nil, fmt.Errorf("nats ingress: %w", transport.ErrClosed)
		}
		return nil, fmt.Errorf("nats ingress: %w", err)
	}
	i.pending = msg
	identity := msg.Header.Get(IdentityHeader)
	if identity == "" {
		identity = msg.Subject
	}
	return []byte(identity), nil
}

func (i *Ingress) RecvPayload() ([]byte, error) {
	if i.closed.Load() {
		return nil, transport.ErrClosed
	}
	if i.pending == nil {
		return nil, errors.New("nats ingress: no message pending")
	}
	msg := i.pending
	i.pending = nil
	return msg.Data, nil
}

func (i *Ingress) Close() error {
	if i.closed.Swap(true) {
		return nil
	}
	i.cancel()
	_ = i.sub.Unsubscribe()
	i.conn.Close()
	return nil
}

type publisher struct {
	conn    *nats.Conn
	subject string
	closed  atomic.Bool
}

func (p *publisher) Send(payload []byte) error {
	if p.closed.Load() || p.conn.IsClosed() {
		return transport.ErrClosed
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (p *publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	_ = p.conn.Flush()
	p.conn.Close()
	return nil
}

type sender struct {
	conn     *nats.Conn
	subject  string
	identity string
	closed   atomic.Bool
}

func (s *sender) Send(payload []byte) error {
	if s.closed.Load() || s.conn.IsClosed() {
		return transport.ErrClosed
	}
	msg := nats.NewMsg(s.subject)
	msg.Header.Set(IdentityHeader, s.identity)
	msg.Data = payload
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (s *sender) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_ = s.conn.Flush()
	s.conn.Close()
	return nil
}

type receiver struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	ch     chan *nats.Msg
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func (r *receiver) Recv() ([]byte, error) {
	select {
	case msg := <-r.ch:
		return msg.Data, nil
	case <-r.ctx.Done():
		return nil, fmt.Errorf("nats receiver: %w", transport.ErrClosed)
	}
}

func (r *receiver) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.cancel()
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.conn.Close()
	return nil
}

// endpointKey reduces an endpoint like tcp://0.0.0.0:56738 to a subject
// token. Bind and dial forms of one endpoint share the port and so the key.
func endpointKey(addr string) string {
	addr = strings.TrimSpace(addr)
	if i := strings.LastIndex(addr, ":"); i >= 0 && i < len(addr)-1 {
		addr = addr[i+1:]
	}
	var b strings.Builder
	for _, r := range addr {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
