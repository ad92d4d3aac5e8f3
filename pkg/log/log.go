package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is an alias for slog.Logger
type Logger = slog.Logger

// LevelTrace sits below slog.LevelDebug and carries partially resolved output.
const LevelTrace = slog.LevelDebug - 4

var defaultLogger *Logger

// Convenience variables to match slog's API
var (
	String   = slog.String
	Int      = slog.Int
	Bool     = slog.Bool
	Duration = slog.Duration
)

// Package-level logging functions
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Trace(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, msg, args...)
}

func Err(err error) slog.Attr {
	return slog.Attr{Key: "error", Value: slog.AnyValue(err)}
}

func FilePath(path string) slog.Attr {
	return slog.Attr{Key: "file_path", Value: slog.AnyValue(path)}
}

// Options selects the sinks and verbosity of a logger.
type Options struct {
	// Debug is the numeric verbosity, see LevelFor.
	Debug int
	// Quiet suppresses the console sink. Syslog output is unaffected.
	Quiet  bool
	Syslog bool
	Ident  string
	// Writer is the console sink, os.Stderr when nil.
	Writer io.Writer
	// NewSyslog opens the syslog sink, the local syslog daemon when nil.
	NewSyslog SyslogFunc
}

// SyslogFunc opens a syslog sink for ident logging at level. The returned
// func closes it.
type SyslogFunc func(ident string, level slog.Leveler) (slog.Handler, func() error, error)

// LevelFor maps a numeric debug level onto a slog level.
//
//	0  errors only
//	1  counts and summaries
//	2  complete definitions
//	3+ everything, including partially resolved criteria
func LevelFor(debug int) slog.Level {
	switch {
	case debug <= 0:
		return slog.LevelError
	case debug == 1:
		return slog.LevelInfo
	case debug == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// New builds a logger for opts. The returned func releases the syslog
// connection, if any.
func New(opts Options) (*Logger, func() error, error) {
	level := LevelFor(opts.Debug)

	var handlers []slog.Handler
	if !opts.Quiet {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		handlers = append(handlers, NewTextHandler(w, level))
	}

	closer := func() error { return nil }
	if opts.Syslog {
		newSyslog := opts.NewSyslog
		if newSyslog == nil {
			newSyslog = newSyslogHandler
		}
		h, c, err := newSyslog(opts.Ident, level)
		if err != nil {
			return nil, nil, fmt.Errorf("syslog: %w", err)
		}
		handlers = append(handlers, h)
		closer = c
	}

	return slog.New(&PrefixHandler{handler: slogmulti.Fanout(handlers...)}), closer, nil
}

// Setup replaces the package-level logger.
func Setup(opts Options) (func() error, error) {
	l, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return closer, nil
}

// NewTextHandler returns a text handler that names LevelTrace "TRACE".
func NewTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	})
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// PrefixHandler is a simple wrapper around slog.Handler that adds a prefix to all messages
type PrefixHandler struct {
	prefix  string
	handler slog.Handler
}

func init() {
	defaultLogger = slog.New(&PrefixHandler{
		handler: NewTextHandler(os.Stderr, slog.LevelInfo),
	})
}

// WithPrefix returns a new logger with the specified prefix
func WithPrefix(prefix string) *Logger {
	return slog.New(&PrefixHandler{
		prefix:  prefix,
		handler: defaultLogger.Handler(),
	})
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

func SetLogger(l *Logger) {
	defaultLogger = l
}

// Handle implements slog.Handler interface
func (h *PrefixHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.prefix != "" {
		r.Message = fmt.Sprintf("[%s] %s", h.prefix, r.Message)
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler interface
func (h *PrefixHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrefixHandler{
		prefix:  h.prefix,
		handler: h.handler.WithAttrs(attrs),
	}
}

// WithGroup implements slog.Handler interface
func (h *PrefixHandler) WithGroup(name string) slog.Handler {
	return &PrefixHandler{
		prefix:  h.prefix,
		handler: h.handler.WithGroup(name),
	}
}

// Enabled implements slog.Handler interface
func (h *PrefixHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}
