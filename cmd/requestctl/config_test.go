package main

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigExample(t *testing.T) {
	root := resolveWorkspaceRoot("cmd/requestctl/ex.config.toml")
	path := filepath.Join(root, "cmd", "requestctl", "ex.config.toml")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node != "requester.local" {
		t.Fatalf("unexpected node: %q", cfg.Node)
	}
	if cfg.Transport != "zmq" {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if len(cfg.PublisherAddrs) != 5 {
		t.Fatalf("unexpected publishers: %+v", cfg.PublisherAddrs)
	}
	if cfg.BatchSize != 25000 {
		t.Fatalf("unexpected batch size: %d", cfg.BatchSize)
	}
	if cfg.AwaitTimeout != time.Second {
		t.Fatalf("unexpected await timeout: %v", cfg.AwaitTimeout)
	}
	if cfg.MetricsAddr != "127.0.0.1:9102" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsAddr)
	}
	if cfg.RouterDial() != "tcp://127.0.0.1:56731" {
		t.Fatalf("unexpected router dial: %q", cfg.RouterDial())
	}
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
