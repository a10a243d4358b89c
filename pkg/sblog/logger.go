// Package sblog wraps log/slog with the chained-field style the rest of
// the core uses for structured, per-request/per-session logging.
package sblog

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger is the logging interface used throughout the core. It is kept
// small and slog-backed rather than wrapping a third-party logging
// library, matching the ambient stack of the rest of the pack.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	WithField(key string, value any) Logger
	WithSession(sessionID string) Logger
	WithBackend(backendKind string) Logger
	WithUser(userID string) Logger
}

type standardLogger struct {
	logger *slog.Logger
	mu     *sync.RWMutex
	level  *slog.LevelVar
}

// New builds a Logger writing to w at the given level ("debug", "info",
// "warn", "error"; unrecognized values default to "info").
func New(w io.Writer, level string) Logger {
	if w == nil {
		w = os.Stderr
	}
	lv := &slog.LevelVar{}
	lv.Set(parseLevel(level))
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return &standardLogger{
		logger: slog.New(handler),
		mu:     &sync.RWMutex{},
		level:  lv,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *standardLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *standardLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *standardLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *standardLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *standardLogger) WithField(key string, value any) Logger {
	return &standardLogger{logger: l.logger.With(key, value), mu: l.mu, level: l.level}
}

func (l *standardLogger) WithSession(sessionID string) Logger {
	return l.WithField("session_id", sessionID)
}

func (l *standardLogger) WithBackend(backendKind string) Logger {
	return l.WithField("backend_kind", backendKind)
}

func (l *standardLogger) WithUser(userID string) Logger {
	return l.WithField("user_id", userID)
}

// SetLevel changes the logging level of all loggers sharing this one's
// underlying LevelVar (including those returned by With*).
func (l *standardLogger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}
