// Package logging sets up the process-wide zerolog logger, mirroring the
// teacher's modules/advancedcache.init() (.env loading + level selection)
// but without the Caddy module-registration side effects that came with it.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init loads .env/.env.local (if present), sets the global zerolog level
// from levelName, and switches between a console writer (dev) and plain
// JSON (prod) the way the teacher's writeLog gates verbose fields on
// cfg.IsProd().
func Init(levelName string, prod bool) {
	if err := godotenv.Overload(".env", ".env.local"); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env files")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stderr
	if !prod {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Named returns a child logger tagged with a "component" field, used by
// the fetcher, cache, and pipeline to identify which subsystem a log line
// came from without a fixed package-level logger per file.
func Named(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
