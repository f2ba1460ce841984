package requester

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/edgebus/internal/config"
	"github.com/danmuck/edgebus/internal/observability"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service connects a Requester to the bus and runs it.
type Service struct {
	cfg     config.Config
	factory transport.Factory
	req     *Requester
}

func NewService(cfg config.Config, factory transport.Factory) *Service {
	return &Service{cfg: cfg, factory: factory}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Requester is nil until Serve has connected.
func (s *Service) Requester() *Requester { return s.req }

func (s *Service) Serve(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	sender, err := s.factory.DialSender(ctx, s.cfg.RouterDial())
	if err != nil {
		return fmt.Errorf("requester sender: %w", err)
	}
	defer sender.Close()

	recv, err := s.factory.DialReceiver(ctx, s.cfg.PublisherDials())
	if err != nil {
		return fmt.Errorf("requester receiver: %w", err)
	}
	defer recv.Close()

	s.req = New(Config{
		Node:         s.cfg.Node,
		BatchSize:    s.cfg.BatchSize,
		AwaitTimeout: s.cfg.AwaitTimeout,
	}, sender)
	defer s.req.Close()

	log.Info().Msgf(
		"requester.Service.Serve connected node=%s transport=%s router=%s publishers=%s",
		s.cfg.Node,
		s.factory.Name(),
		s.cfg.RouterDial(),
		strings.Join(s.cfg.PublisherDials(), ","),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.req.ReceiveLoop(gctx, recv)
	})
	g.Go(func() error {
		return s.req.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return recv.Close()
	})
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		router := observability.NewRouter(
			s.cfg.Node,
			observability.ComponentLogger("requester", s.cfg.Node),
			s.status,
			observability.WithToken(s.cfg.MetricsToken),
		)
		g.Go(func() error {
			return observability.Serve(gctx, addr, router)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	sent, resent, received := s.req.Counters()
	log.Info().Msgf(
		"requester.Service.Serve stopped node=%s sent=%d resent=%d received=%d pending=%d",
		s.cfg.Node,
		sent,
		resent,
		received,
		s.req.Store().Len(),
	)
	return err
}

func (s *Service) status() map[string]any {
	out := map[string]any{"role": "requester"}
	if s.req != nil {
		sent, resent, received := s.req.Counters()
		out["sent"] = sent
		out["resent"] = resent
		out["received"] = received
		out["pending"] = s.req.Store().Len()
	}
	return out
}
