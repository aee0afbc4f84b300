// Package logging provides structured, leveled logging for the runtime,
// backed by github.com/rs/zerolog so call sites never import zerolog
// directly.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel mirrors zerolog's level model without leaking the dependency
// into call sites.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format is "text" (console-writer, human readable) or "json"
	// (zerolog's native wire format). Defaults to "text".
	Format string
	Output io.Writer
	// Sync forces writes to go through a mutex-serialized writer — useful
	// for tests that assert on captured output immediately after a call.
	Sync bool
	// NoColor disables ANSI color in the console writer.
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps a zerolog.Logger with the runtime's fixed field vocabulary
// (ctx id, queue region, tag, op).
type Logger struct {
	z zerolog.Logger
}

// NewLogger creates a new logger from config.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	if config.Sync {
		out = &syncWriter{w: out}
	}

	var w io.Writer = out
	if config.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, NoColor: config.NoColor}
	}

	z := zerolog.New(w).Level(config.Level.zerolog()).With().Timestamp().Logger()
	return &Logger{z: z}
}

// syncWriter serializes writes from concurrent log calls behind a mutex.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// Default returns the process-wide default logger, creating one if needed.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func fields(e *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	return e
}

func (l *Logger) Debug(msg string, args ...any) { fields(l.z.Debug(), args).Msg(msg) }
func (l *Logger) Info(msg string, args ...any)  { fields(l.z.Info(), args).Msg(msg) }
func (l *Logger) Warn(msg string, args ...any)  { fields(l.z.Warn(), args).Msg(msg) }
func (l *Logger) Error(msg string, args ...any) { fields(l.z.Error(), args).Msg(msg) }

// Debugf/Infof/Warnf/Errorf give printf-style call sites (loop spin paths,
// descriptor codec) a home without key-value pairs.
func (l *Logger) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

// Printf gives call sites expecting log.Logger-style printf a drop-in.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// WithCtx returns a logger with the context index fixed as a field — every
// log line from the send+recv critical section of one hardware context
// carries it.
func (l *Logger) WithCtx(ctxIdx int) *Logger {
	return &Logger{z: l.z.With().Int("ctx", ctxIdx).Logger()}
}

// WithQueue tags a logger with the scheduler region a context belongs to.
func (l *Logger) WithQueue(opType, numaID int) *Logger {
	return &Logger{z: l.z.With().Int("op_type", opType).Int("numa", numaID).Logger()}
}

// WithRequest tags a logger with an in-flight async tag and op name.
func (l *Logger) WithRequest(tag int, op string) *Logger {
	return &Logger{z: l.z.With().Int("tag", tag).Str("op", op).Logger()}
}

// WithError attaches an error field for the remainder of the chain.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{z: l.z.With().Err(err).Logger()}
}

// Global convenience functions delegate to Default().
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
