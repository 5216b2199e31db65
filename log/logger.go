// Package log provides the structured logger used across logsink.
// It exposes the Kratos log.Logger interface backed by zerolog, plus
// package-level helpers bound to the process-wide logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
)

// Logger is the Kratos logger interface re-exported for callers that accept
// an injected logger.
type Logger = log.Logger

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "console" for human-readable output or "json". Defaults to console.
	Format string
	// Output receives log lines. Defaults to os.Stderr.
	Output io.Writer
	// Service is attached to every entry as service.name when set.
	Service string
}

var (
	// current holds the process-wide Logger wrapped in loggerHolder,
	// since atomic.Value requires a single concrete type
	current atomic.Value // of loggerHolder
	// helperStore stores *log.Helper atomically so InitLogger may run concurrently with logging
	helperStore atomic.Value // of *log.Helper
)

type loggerHolder struct{ logger log.Logger }

func init() {
	l, _ := NewLogger(Options{})
	setLogger(l)
}

// ParseLevel maps a level name to a Kratos level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.LevelInfo, nil
	case "debug":
		return log.LevelDebug, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "fatal":
		return log.LevelFatal, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds a Kratos logger over zerolog without installing it.
func NewLogger(opts Options) (log.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
			NoColor:    true,
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.MessageFieldName,
			},
		}
	case "json":
		w = out
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	zl := zerolog.New(w).With().Timestamp().Logger()
	var logger log.Logger = log.NewFilter(NewZeroLogLogger(zl), log.FilterLevel(level))
	if opts.Service != "" {
		logger = log.With(logger, "service.name", opts.Service)
	}
	return logger, nil
}

// InitLogger builds a logger from opts and installs it as the process-wide logger.
func InitLogger(opts Options) error {
	l, err := NewLogger(opts)
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// GetLogger returns the process-wide logger.
func GetLogger() log.Logger {
	return current.Load().(loggerHolder).logger
}

func setLogger(l log.Logger) {
	current.Store(loggerHolder{logger: l})
	helperStore.Store(log.NewHelper(l))
}

func helper() *log.Helper {
	return helperStore.Load().(*log.Helper)
}
