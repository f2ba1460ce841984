// Package driver selects the transport binding named in config.
package driver

import (
	"fmt"

	"github.com/danmuck/edgebus/internal/config"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/danmuck/edgebus/internal/transport/natsbus"
	"github.com/danmuck/edgebus/internal/transport/zmq"
)

func Open(cfg config.Config) (transport.Factory, error) {
	switch cfg.Transport {
	case config.TransportZMQ, "":
		return zmq.NewFactory(), nil
	case config.TransportNATS:
		return natsbus.NewFactory(natsbus.Config{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Name:          cfg.Node,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalidConfig, cfg.Transport)
	}
}
