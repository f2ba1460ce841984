package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TransportZMQ  = "zmq"
	TransportNATS = "nats"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the process-wide, read-once configuration shared by the bus,
// requester and responder. It is built in main and passed down by value.
type Config struct {
	Node      string
	Transport string

	// RouterAddr and PublisherAddrs are the bus bind endpoints.
	RouterAddr     string
	PublisherAddrs []string

	// Dial variants are what clients connect to. Empty means derive from the
	// bind endpoints.
	RouterDialAddr     string
	PublisherDialAddrs []string

	// BatchSize is both the requester's group size and the period of the
	// debug counter lines on every loop.
	BatchSize    int
	AwaitTimeout time.Duration

	LogLevel     string
	MetricsAddr  string
	// MetricsToken, when set, is required as a bearer token on the metrics
	// listener.
	MetricsToken string

	NATSURL           string
	NATSSubjectPrefix string
}

func Default() Config {
	return Config{
		Node:       "edgebus",
		Transport:  TransportZMQ,
		RouterAddr: "tcp://0.0.0.0:56731",
		PublisherAddrs: []string{
			"tcp://0.0.0.0:56738",
			"tcp://0.0.0.0:56739",
			"tcp://0.0.0.0:56740",
			"tcp://0.0.0.0:56741",
			"tcp://0.0.0.0:56742",
		},
		BatchSize:         25_000,
		AwaitTimeout:      1000 * time.Millisecond,
		LogLevel:          "debug",
		NATSURL:           "nats://127.0.0.1:4222",
		NATSSubjectPrefix: "edgebus",
	}
}

// RouterDial returns the endpoint clients dial to reach the bus router.
func (c Config) RouterDial() string {
	if v := strings.TrimSpace(c.RouterDialAddr); v != "" {
		return v
	}
	return DialAddr(c.RouterAddr)
}

// PublisherDials returns the endpoints clients subscribe to.
func (c Config) PublisherDials() []string {
	if len(c.PublisherDialAddrs) > 0 {
		return append([]string(nil), c.PublisherDialAddrs...)
	}
	out := make([]string, 0, len(c.PublisherAddrs))
	for _, addr := range c.PublisherAddrs {
		out = append(out, DialAddr(addr))
	}
	return out
}

// DialAddr rewrites a wildcard bind endpoint into a loopback dial endpoint.
func DialAddr(bind string) string {
	bind = strings.TrimSpace(bind)
	for _, wildcard := range []string{"0.0.0.0", "*"} {
		if strings.Contains(bind, "://"+wildcard+":") {
			return strings.Replace(bind, "://"+wildcard+":", "://127.0.0.1:", 1)
		}
	}
	return bind
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportZMQ, TransportNATS:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if strings.TrimSpace(c.RouterAddr) == "" {
		return fmt.Errorf("%w: router_addr is required", ErrInvalidConfig)
	}
	if len(c.PublisherAddrs) == 0 {
		return fmt.Errorf("%w: at least one publisher_addrs entry is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.PublisherAddrs))
	for i, addr := range c.PublisherAddrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return fmt.Errorf("%w: publisher_addrs[%d] is empty", ErrInvalidConfig, i)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("%w: publisher_addrs[%d] duplicates %q", ErrInvalidConfig, i, addr)
		}
		seen[addr] = struct{}{}
	}
	if len(c.PublisherDialAddrs) > 0 && len(c.PublisherDialAddrs) != len(c.PublisherAddrs) {
		return fmt.Errorf("%w: publisher_dial_addrs must match publisher_addrs", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.AwaitTimeout <= 0 {
		return fmt.Errorf("%w: await_timeout must be positive", ErrInvalidConfig)
	}
	if c.Transport == TransportNATS && strings.TrimSpace(c.NATSURL) == "" {
		return fmt.Errorf("%w: nats_url is required for nats transport", ErrInvalidConfig)
	}
	return nil
}

type fileConfig struct {
	Node               string   `toml:"node"`
	Transport          string   `toml:"transport"`
	RouterAddr         string   `toml:"router_addr"`
	PublisherAddrs     []string `toml:"publisher_addrs"`
	RouterDialAddr     string   `toml:"router_dial_addr,omitempty"`
	PublisherDialAddrs []string `toml:"publisher_dial_addrs,omitempty"`
	BatchSize          int      `toml:"batch_size"`
	AwaitTimeout       string   `toml:"await_timeout"`
	AwaitTimeoutMS     int64    `toml:"await_timeout_ms,omitempty"`
	LogLevel           string   `toml:"log_level"`
	MetricsAddr        string   `toml:"metrics_addr"`
	MetricsToken       string   `toml:"metrics_token,omitempty"`
	NATSURL            string   `toml:"nats_url"`
	NATSSubjectPrefix  string   `toml:"nats_subject_prefix"`
}

// Load overlays the keys present in path onto Default and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("node") {
		if v := strings.TrimSpace(raw.Node); v != "" {
			cfg.Node = v
		}
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("router_addr") {
		cfg.RouterAddr = strings.TrimSpace(raw.RouterAddr)
	}
	if meta.IsDefined("publisher_addrs") {
		cfg.PublisherAddrs = normalizeAddrs(raw.PublisherAddrs)
	}
	if meta.IsDefined("router_dial_addr") {
		cfg.RouterDialAddr = strings.TrimSpace(raw.RouterDialAddr)
	}
	if meta.IsDefined("publisher_dial_addrs") {
		cfg.PublisherDialAddrs = normalizeAddrs(raw.PublisherDialAddrs)
	}
	if meta.IsDefined("batch_size") {
		cfg.BatchSize = raw.BatchSize
	}
	if meta.IsDefined("await_timeout") && meta.IsDefined("await_timeout_ms") {
		return Config{}, fmt.Errorf("%w: await_timeout and await_timeout_ms are mutually exclusive", ErrInvalidConfig)
	}
	if meta.IsDefined("await_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AwaitTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse await_timeout: %w", err)
		}
		cfg.AwaitTimeout = d
	}
	if meta.IsDefined("await_timeout_ms") {
		cfg.AwaitTimeout = time.Duration(raw.AwaitTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("metrics_token") {
		cfg.MetricsToken = strings.TrimSpace(raw.MetricsToken)
	}
	if meta.IsDefined("nats_url") {
		cfg.NATSURL = strings.TrimSpace(raw.NATSURL)
	}
	if meta.IsDefined("nats_subject_prefix") {
		cfg.NATSSubjectPrefix = strings.TrimSpace(raw.NATSSubjectPrefix)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault returns Default when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return Load(path)
}

func normalizeAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, addr := range in {
		v := strings.TrimSpace(addr)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
