package tmi

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// Logger is the logging surface the client drives; swap in a no-op or a
// test recorder via ClientOptions.Logger.
type Logger interface {
	SetLevel(level string) error
	Trace(msg string)
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}

// DefaultLogger backs Logger with zerolog, writing level-tagged,
// timestamped lines to stderr.
type DefaultLogger struct {
	logger zerolog.Logger
}

// NewLogger creates the default logger at LogLevelError (matches the
// library's default of staying quiet unless Options.Debug asks for more).
func NewLogger() *DefaultLogger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(zerolog.ErrorLevel)
	return &DefaultLogger{logger: zl}
}

// SetLevel sets the logging level from one of tmi.js's string levels.
func (l *DefaultLogger) SetLevel(level string) error {
	zlevel, err := levelFromString(level)
	if err != nil {
		return err
	}
	l.logger = l.logger.Level(zlevel)
	return nil
}

func levelFromString(level string) (zerolog.Level, error) {
	switch level {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

func (l *DefaultLogger) Trace(msg string) { l.logger.Trace().Msg(msg) }
func (l *DefaultLogger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *DefaultLogger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *DefaultLogger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *DefaultLogger) Error(msg string) { l.logger.Error().Msg(msg) }

// Fatal logs at fatal level and exits the process, matching the teacher's
// Logger contract (callers only reach this for unrecoverable setup errors,
// never from within the read loop).
func (l *DefaultLogger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

// nopLogger discards everything; used as ClientOptions' implicit zero value
// never is, but tests that don't care about log output can use it directly.
type nopLogger struct{}

func (nopLogger) SetLevel(string) error { return nil }
func (nopLogger) Trace(string)          {}
func (nopLogger) Debug(string)          {}
func (nopLogger) Info(string)           {}
func (nopLogger) Warn(string)           {}
func (nopLogger) Error(string)          {}
func (nopLogger) Fatal(string)          {}
