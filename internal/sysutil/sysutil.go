// Package sysutil configures process-wide logging for the bridge commands.
package sysutil

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "inbound-bridge"

// SetupLogger installs the global zerolog logger writing to stderr, as JSON
// or through a console writer when pretty is set. The standard library
// logger (used by net/http for accept and TLS errors) is redirected into it.
// It returns the writer in use.
func SetupLogger(lvl string, pretty bool) io.Writer {
	return setup(os.Stderr, lvl, pretty)
}

func setup(out io.Writer, lvl string, pretty bool) io.Writer {
	zerolog.SetGlobalLevel(parseLevel(lvl))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := out
	if pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger.With().Str("source", "stdlog").Logger())
	return w
}

// parseLevel accepts zerolog level names plus the "warning" alias. Unknown
// or empty values fall back to info; trace and disabled are not offered.
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl < zerolog.DebugLevel || lvl > zerolog.PanicLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
