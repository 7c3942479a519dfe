// Package nwlog provides the structured logger shared by the sync
// engine and ENML converter. It mirrors the thin zerolog wrapper
// pattern used elsewhere for component-scoped logging.
package nwlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-global logger instance; Init replaces it.
var Logger zerolog.Logger

// Level names a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how Init configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the package-global logger from cfg.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Sane default so packages that log before the caller calls Init
	// (e.g. in tests) still produce readable output.
	Init(Config{Level: InfoLevel})
}

// WithComponent returns a child logger tagged with a component name,
// e.g. "sync.processors.notes" or "enml.converter".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithScope returns a child logger tagged with the sync scope it is
// operating on: "user_own" or a linked notebook guid.
func WithScope(logger zerolog.Logger, scope string) zerolog.Logger {
	return logger.With().Str("scope", scope).Logger()
}
