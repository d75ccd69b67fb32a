// Package tracelog provides the Logger interface used throughout the
// engine for the diagnostic logging called for by the error-handling
// taxonomy: argument validation (error level), consistency anomalies
// and probe faults (warn level), and tracer-internal debug detail.
package tracelog

import (
	"sync"

	"go.uber.org/zap"
)

// Logger is the minimal logging surface the engine depends on. It is
// deliberately narrow so that host applications can adapt whatever
// logging library they already use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l zapLogger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// Default returns the package-wide default Logger, a zap-backed
// implementation constructed lazily and reused across calls.
func Default() Logger {
	defaultOnce.Do(func() {
		z, err := zap.NewProduction()
		if err != nil {
			defaultLogger = Discard{}
			return
		}
		defaultLogger = zapLogger{s: z.Sugar()}
	})
	return defaultLogger
}

// Discard is a Logger that drops everything, useful in tests that
// don't want to assert on log output.
type Discard struct{}

func (Discard) Debugf(string, ...interface{}) {}
func (Discard) Warnf(string, ...interface{})  {}
func (Discard) Errorf(string, ...interface{}) {}

// Recording is a Logger that stores every call, for tests that assert
// on what was logged.
type Recording struct {
	mu       sync.Mutex
	Debugs   []string
	Warns    []string
	Errors   []string
}

func (r *Recording) Debugf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Debugs = append(r.Debugs, format)
}

func (r *Recording) Warnf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warns = append(r.Warns, format)
}

func (r *Recording) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, format)
}

func (r *Recording) WarnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Warns)
}

func (r *Recording) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}
