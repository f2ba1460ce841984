package main

import (
	"flag"
	"log"

	"github.com/danmuck/edgebus/internal/config"
)

var defaultPaths = map[string]string{
	"bus":       "cmd/busctl/config.toml",
	"requester": "cmd/requestctl/config.toml",
	"responder": "cmd/responderctl/config.toml",
}

func main() {
	kind := flag.String("kind", "bus", "config kind: bus|requester|responder")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	defaultPath, ok := defaultPaths[*kind]
	if !ok {
		log.Fatalf("unknown kind: %s", *kind)
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (node=%s transport=%s publishers=%d)", *kind, path, cfg.Node, cfg.Transport, len(cfg.PublisherAddrs))
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
