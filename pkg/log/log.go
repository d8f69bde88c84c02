package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-wide zerolog instance every child logger in
// this process derives from. Init must run once before any
// WithComponent/WithQueue/WithItem call.
var Logger zerolog.Logger

// Level names one of the four levels the ingestor runs at.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how Init builds the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the global logger from cfg. JSONOutput picks structured
// JSON lines (for shipping to log aggregation); the default is a
// human-readable console writer for running the worker interactively.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
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
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent scopes subsequent log lines to one package or
// long-lived value (scheduler, seeder, processor.primary, dashboard).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithQueue scopes subsequent log lines to one of the two work queues.
func WithQueue(queue string) zerolog.Logger {
	return Logger.With().Str("queue", queue).Logger()
}

// WithItem scopes subsequent log lines to a single queue entry, for
// tracing one item's claim/fetch/embed/upsert/complete sequence across
// several log calls.
func WithItem(queue, key string) zerolog.Logger {
	return Logger.With().Str("queue", queue).Str("key", key).Logger()
}
