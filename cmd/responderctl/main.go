package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/edgebus/internal/responder"
	"github.com/danmuck/edgebus/internal/logging"
	"github.com/danmuck/edgebus/internal/transport/driver"
)

func main() {
	configPath := flag.String("config", "", "config path (defaults to "+defaultConfigPath+" when present)")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "responderctl: %v\n", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	factory, err := driver.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "responderctl: %v\n", err)
		os.Exit(1)
	}
	if err := responder.NewService(cfg, factory).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "responderctl: %v\n", err)
		os.Exit(1)
	}
}
