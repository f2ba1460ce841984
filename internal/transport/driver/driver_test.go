package driver

import (
	"errors"
	"testing"

	"github.com/danmuck/edgebus/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsBinding(t *testing.T) {
	cfg := config.Default()

	f, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, "zmq", f.Name())

	cfg.Transport = config.TransportNATS
	f, err = Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, "nats", f.Name())

	cfg.Transport = "udp"
	_, err = Open(cfg)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}
