package log

import (
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
)

// missingValue pads a key that arrived without a value.
const missingValue = "BAD_VALUE"

type zeroLogLogger struct {
	logger zerolog.Logger
}

// NewZeroLogLogger adapts a zerolog.Logger to the Kratos log.Logger interface.
// The DefaultMessageKey value becomes the entry message; an error under
// "err" or "error" is written to zerolog's error field.
func NewZeroLogLogger(l zerolog.Logger) log.Logger {
	return zeroLogLogger{logger: l}
}

func (l zeroLogLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, missingValue)
	}

	event := l.event(level)
	if event == nil {
		return nil
	}

	var msg string
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		event = field(event, key, keyvals[i+1])
	}
	event.Msg(msg)
	return nil
}

func (l zeroLogLogger) event(level log.Level) *zerolog.Event {
	switch level {
	case log.LevelDebug:
		return l.logger.Debug()
	case log.LevelInfo:
		return l.logger.Info()
	case log.LevelWarn:
		return l.logger.Warn()
	case log.LevelError:
		return l.logger.Error()
	case log.LevelFatal:
		return l.logger.Fatal()
	}
	return l.logger.Warn().Str("kratos_level", level.String())
}

// field appends key=val using the typed zerolog encoder where one exists.
func field(e *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case error:
		if key == "err" || key == "error" {
			return e.Err(v)
		}
		return e.AnErr(key, v)
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	case time.Time:
		return e.Time(key, v)
	case fmt.Stringer:
		return e.Stringer(key, v)
	}
	return e.Interface(key, val)
}
