package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root zerolog logger. Every component derives its own
// logger from this one via With().Str("component", ...).
//
// level accepts the standard zerolog names (trace through panic); anything
// unparseable falls back to info. format "pretty" switches to the console
// writer for local development, everything else emits JSON.
func Setup(level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout

	if format == "pretty" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()
}
