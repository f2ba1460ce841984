package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/edgebus/internal/config"
)

const (
	defaultConfigPath = "cmd/requestctl/config.toml"
	defaultNode       = "requester.local"
)

// loadConfig reads path, or the workspace default when path is empty and
// that file exists, or falls back to built-in defaults.
func loadConfig(path string) (config.Config, error) {
	if strings.TrimSpace(path) == "" {
		candidate := filepath.Join(resolveWorkspaceRoot(defaultConfigPath), defaultConfigPath)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Node == config.Default().Node {
		cfg.Node = defaultNode
	}
	return cfg, nil
}

// resolveWorkspaceRoot walks up from the working directory to the first
// directory holding rel or a go.mod.
func resolveWorkspaceRoot(rel string) string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
