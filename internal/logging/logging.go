// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global logger. Called once at startup.
// Pretty output goes to stderr so it never interleaves with build
// narration on stdout.
func Init(levelName string, pretty bool) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stderr
	}

	zlog.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "buildflow").
		Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// Logger returns the configured global logger.
func Logger() zerolog.Logger {
	return zlog.Logger
}
