package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Template renders cfg as a config file for the given process kind.
func Template(kind string, cfg Config) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "bus", "requester", "responder":
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	if strings.TrimSpace(cfg.Node) == "" || cfg.Node == Default().Node {
		cfg.Node = kind + ".local"
	}

	raw := fileConfig{
		Node:              cfg.Node,
		Transport:         cfg.Transport,
		RouterAddr:        cfg.RouterAddr,
		PublisherAddrs:    cfg.PublisherAddrs,
		BatchSize:         cfg.BatchSize,
		AwaitTimeout:      cfg.AwaitTimeout.String(),
		LogLevel:          cfg.LogLevel,
		MetricsAddr:       cfg.MetricsAddr,
		MetricsToken:      cfg.MetricsToken,
		NATSURL:           cfg.NATSURL,
		NATSSubjectPrefix: cfg.NATSSubjectPrefix,
	}
	if cfg.RouterDialAddr != "" {
		raw.RouterDialAddr = cfg.RouterDialAddr
	}
	if len(cfg.PublisherDialAddrs) > 0 {
		raw.PublisherDialAddrs = cfg.PublisherDialAddrs
	}

	out, err := toml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return "# edgebus " + kind + " config\n" + string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind, Default())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
