package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/edgebus/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatusFunc reports process-specific counters for /health.
type StatusFunc func() map[string]any

var startedAt = time.Now()

type routerConfig struct {
	validator auth.Validator
}

type RouterOption func(*routerConfig)

// WithToken requires a bearer token on every route when token is set.
func WithToken(token string) RouterOption {
	return func(c *routerConfig) {
		if token != "" {
			c.validator = auth.StaticToken(token)
		}
	}
}

// NewRouter builds the /health and /metrics listener for one process.
func NewRouter(node string, logger zerolog.Logger, status StatusFunc, opts ...RouterOption) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	RegisterMetrics()

	var cfg routerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware(node))
	if cfg.validator != nil {
		r.Use(RequireToken(cfg.validator))
	}

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"node":    node,
			"uptime":  time.Since(startedAt).String(),
			"service": "edgebus",
		}
		if status != nil {
			for k, v := range status() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Serve runs h on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Msgf("observability.Serve listening addr=%q", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
