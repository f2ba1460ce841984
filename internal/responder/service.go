package responder

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

// Service connects a Responder to the bus and runs it.
type Service struct {
	cfg     config.Config
	factory transport.Factory
	resp    *Responder
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

func (s *Service) Serve(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	sender, err := s.factory.DialSender(ctx, s.cfg.RouterDial())
	if err != nil {
		return fmt.Errorf("responder sender: %w", err)
	}
	defer sender.Close()

	recv, err := s.factory.DialReceiver(ctx, s.cfg.PublisherDials())
	if err != nil {
		return fmt.Errorf("responder receiver: %w", err)
	}
	defer recv.Close()

	s.resp = New(s.cfg.Node, sender, s.cfg.BatchSize)
	log.Info().Msgf(
		"responder.Service.Serve connected node=%s transport=%s router=%s publishers=%s",
		s.cfg.Node,
		s.factory.Name(),
		s.cfg.RouterDial(),
		strings.Join(s.cfg.PublisherDials(), ","),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.resp.Run(gctx, recv)
	})
	g.Go(func() error {
		<-gctx.Done()
		return recv.Close()
	})
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		router := observability.NewRouter(
			s.cfg.Node,
			observability.ComponentLogger("responder", s.cfg.Node),
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
	log.Info().Msgf("responder.Service.Serve stopped node=%s processed=%d", s.cfg.Node, s.resp.Processed())
	return err
}

func (s *Service) status() map[string]any {
	out := map[string]any{"role": "responder"}
	if s.resp != nil {
		out["processed"] = s.resp.Processed()
	}
	return out
}
