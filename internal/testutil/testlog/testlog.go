package testlog

import (
	"testing"
	"time"

	"github.com/danmuck/edgebus/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start applies the test log profile and brackets the test with start/finish
// lines. The returned logger carries the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := log.With().Str("test", t.Name()).Logger()
	started := time.Now()
	logger.Info().Msg("testlog.Start")
	t.Cleanup(func() {
		logger.Info().
			Bool("failed", t.Failed()).
			Dur("elapsed", time.Since(started)).
			Msg("testlog.Finish")
	})
	return logger
}
