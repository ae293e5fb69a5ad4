package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config contains logger configuration.
type Config struct {
	// Level sets the logging level (trace, debug, info, warn, error).
	Level string
	// Pretty enables human-readable console output with colors.
	Pretty bool
	// Output sets the output writer. Defaults to os.Stderr: in stdio
	// transport mode, stdout is reserved for the JSON-RPC wire, so logs
	// must never share it.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration. Pretty is decided
// by terminal detection on stderr rather than hardcoded, so a piped
// server process emits plain single-line JSON while an interactive
// terminal gets the colorized console writer.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: AutoPretty(os.Stderr),
		Output: os.Stderr,
	}
}

// AutoPretty reports whether f looks like an interactive terminal and
// pretty console output is therefore appropriate.
func AutoPretty(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// New creates a new zerolog logger with the given configuration.
func New(cfg Config) zerolog.Logger {
	// Set global time format
	zerolog.TimeFieldFormat = time.RFC3339

	// Parse log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	// Use pretty console writer for human-readable output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewWithComponent creates a logger with a component field for structured logging.
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
