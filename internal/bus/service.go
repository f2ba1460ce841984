package bus

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

// Service owns the bus sockets and dispatch loop for one process.
type Service struct {
	cfg     config.Config
	factory transport.Factory

	pool       *Pool
	dispatcher *Dispatcher
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

// Serve binds the ingress and every publisher, then dispatches until ctx is
// done. Bind failures are returned before any message is read.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	ingress, err := s.factory.ListenIngress(ctx, s.cfg.RouterAddr)
	if err != nil {
		return fmt.Errorf("bus ingress: %w", err)
	}
	closers := []func() error{ingress.Close}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	pubs := make([]Publisher, 0, len(s.cfg.PublisherAddrs))
	for _, addr := range s.cfg.PublisherAddrs {
		pub, err := s.factory.ListenPublisher(ctx, addr)
		if err != nil {
			return fmt.Errorf("bus publisher %s: %w", addr, err)
		}
		closers = append(closers, pub.Close)
		pubs = append(pubs, pub)
	}

	pool, err := NewPool(pubs, NewRetryQueue(), WithNode(s.cfg.Node))
	if err != nil {
		return err
	}
	s.pool = pool
	s.dispatcher = NewDispatcher(ingress, pool, s.cfg.BatchSize)

	log.Info().Msgf(
		"bus.Service.Serve ready node=%s transport=%s router=%s publishers=%s",
		s.cfg.Node,
		s.factory.Name(),
		s.cfg.RouterAddr,
		strings.Join(s.cfg.PublisherAddrs, ","),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.dispatcher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks the dispatcher's ingress read.
		return ingress.Close()
	})
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		router := observability.NewRouter(
			s.cfg.Node,
			observability.ComponentLogger("bus", s.cfg.Node),
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
	log.Info().Msgf("bus.Service.Serve stopped node=%s processed=%d", s.cfg.Node, s.dispatcher.Processed())
	return err
}

func (s *Service) status() map[string]any {
	out := map[string]any{"role": "bus"}
	if s.dispatcher != nil {
		out["processed"] = s.dispatcher.Processed()
	}
	if s.pool != nil {
		out["publishers"] = s.pool.Len()
		out["retry_depth"] = s.pool.retry.Len()
		last := s.pool.LastActions()
		lastMS := make([]int64, len(last))
		for i, d := range last {
			lastMS[i] = d.Milliseconds()
		}
		out["last_action_ms"] = lastMS
	}
	return out
}
