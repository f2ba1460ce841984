package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a child of the global logger tagged with the
// process role and node. The global logger itself is left alone; it is set
// up once by the logging package.
func ComponentLogger(role, node string) zerolog.Logger {
	return log.Logger.With().Str("role", role).Str("node", node).Logger()
}
