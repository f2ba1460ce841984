package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25_000, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.AwaitTimeout)
	assert.Len(t, cfg.PublisherAddrs, 5)
	assert.Equal(t, "tcp://0.0.0.0:56731", cfg.RouterAddr)
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
node = "bus-a"
batch_size = 10
await_timeout = "250ms"
publisher_addrs = ["tcp://0.0.0.0:7001", "tcp://0.0.0.0:7002"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bus-a", cfg.Node)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.AwaitTimeout)
	assert.Equal(t, []string{"tcp://0.0.0.0:7001", "tcp://0.0.0.0:7002"}, cfg.PublisherAddrs)
	assert.Equal(t, Default().RouterAddr, cfg.RouterAddr)
	assert.Equal(t, TransportZMQ, cfg.Transport)
}

func TestLoadAwaitTimeoutMillis(t *testing.T) {
	cfg, err := Load(writeConfig(t, "await_timeout_ms = 40\n"))
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, cfg.AwaitTimeout)
}

func TestLoadRejectsBothAwaitTimeoutKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "await_timeout = \"250ms\"\nawait_timeout_ms = 40\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "bogus = 1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"transport":  `transport = "carrier-pigeon"`,
		"batch":      `batch_size = 0`,
		"publishers": `publisher_addrs = []`,
		"duplicate":  `publisher_addrs = ["tcp://0.0.0.0:1", "tcp://0.0.0.0:1"]`,
		"timeout":    `await_timeout = "0s"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body+"\n"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `await_timeout = "soon"`+"\n"))
	require.Error(t, err)
}

func TestLoadOrDefaultEmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDialAddrs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "tcp://127.0.0.1:56731", cfg.RouterDial())
	assert.Equal(t, "tcp://127.0.0.1:56738", cfg.PublisherDials()[0])
	assert.Equal(t, "tcp://10.0.0.4:1", DialAddr("tcp://10.0.0.4:1"))
	assert.Equal(t, "tcp://127.0.0.1:9", DialAddr("tcp://*:9"))

	cfg.RouterDialAddr = "tcp://bus.internal:56731"
	cfg.PublisherDialAddrs = []string{"tcp://bus.internal:1"}
	assert.Equal(t, "tcp://bus.internal:56731", cfg.RouterDial())
	assert.Equal(t, []string{"tcp://bus.internal:1"}, cfg.PublisherDials())
}

func TestTemplateRoundTrip(t *testing.T) {
	for _, kind := range []string{"bus", "requester", "responder"} {
		t.Run(kind, func(t *testing.T) {
			body, err := Template(kind, Default())
			require.NoError(t, err)

			var raw map[string]any
			_, err = toml.Decode(body, &raw)
			require.NoError(t, err)
			assert.Equal(t, kind+".local", raw["node"])

			cfg, err := Load(writeConfig(t, body))
			require.NoError(t, err)
			assert.Equal(t, Default().PublisherAddrs, cfg.PublisherAddrs)
			assert.Equal(t, Default().AwaitTimeout, cfg.AwaitTimeout)
		})
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	_, err := Template("gateway", Default())
	require.Error(t, err)
}

func TestWriteTemplateRespectsOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.toml")
	require.NoError(t, WriteTemplate(path, "bus", false))
	require.Error(t, WriteTemplate(path, "bus", false))
	require.NoError(t, WriteTemplate(path, "bus", true))
}
