package logger

import (
	"bytes"
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// HCLogger adapts a slog.Logger to the hashicorp/go-hclog interface so
// that hashicorp libraries (memberlist) write into the application log.
type HCLogger struct {
	logger  *slog.Logger
	name    string
	implied []any
}

var _ hclog.Logger = (*HCLogger)(nil)

// NewHCLogger creates an hclog adapter named name on top of l.
func NewHCLogger(name string, l *slog.Logger) *HCLogger {
	if l == nil {
		l = slog.Default()
	}
	return &HCLogger{logger: l.With("component", name), name: name}
}

// Log implements hclog.Logger.
func (h *HCLogger) Log(level hclog.Level, msg string, args ...any) {
	h.logger.Log(context.Background(), toSlogLevel(level), msg, args...)
}

func (h *HCLogger) Trace(msg string, args ...any) { h.Log(hclog.Trace, msg, args...) }
func (h *HCLogger) Debug(msg string, args ...any) { h.Log(hclog.Debug, msg, args...) }
func (h *HCLogger) Info(msg string, args ...any)  { h.Log(hclog.Info, msg, args...) }
func (h *HCLogger) Warn(msg string, args ...any)  { h.Log(hclog.Warn, msg, args...) }
func (h *HCLogger) Error(msg string, args ...any) { h.Log(hclog.Error, msg, args...) }

func (h *HCLogger) IsTrace() bool { return h.enabled(hclog.Trace) }
func (h *HCLogger) IsDebug() bool { return h.enabled(hclog.Debug) }
func (h *HCLogger) IsInfo() bool  { return h.enabled(hclog.Info) }
func (h *HCLogger) IsWarn() bool  { return h.enabled(hclog.Warn) }
func (h *HCLogger) IsError() bool { return h.enabled(hclog.Error) }

func (h *HCLogger) enabled(level hclog.Level) bool {
	return h.logger.Enabled(context.Background(), toSlogLevel(level))
}

// ImpliedArgs implements hclog.Logger.
func (h *HCLogger) ImpliedArgs() []any { return h.implied }

// With implements hclog.Logger.
func (h *HCLogger) With(args ...any) hclog.Logger {
	implied := make([]any, 0, len(h.implied)+len(args))
	implied = append(implied, h.implied...)
	implied = append(implied, args...)
	return &HCLogger{logger: h.logger.With(args...), name: h.name, implied: implied}
}

// Name implements hclog.Logger.
func (h *HCLogger) Name() string { return h.name }

// Named implements hclog.Logger.
func (h *HCLogger) Named(name string) hclog.Logger {
	if h.name != "" {
		name = h.name + "." + name
	}
	return h.ResetNamed(name)
}

// ResetNamed implements hclog.Logger.
func (h *HCLogger) ResetNamed(name string) hclog.Logger {
	return &HCLogger{logger: h.logger.With("subsystem", name), name: name, implied: h.implied}
}

// SetLevel is a no-op: the level is owned by the global slog level.
func (h *HCLogger) SetLevel(hclog.Level) {}

// GetLevel implements hclog.Logger.
func (h *HCLogger) GetLevel() hclog.Level {
	switch {
	case h.IsDebug():
		return hclog.Debug
	case h.IsInfo():
		return hclog.Info
	case h.IsWarn():
		return hclog.Warn
	default:
		return hclog.Error
	}
}

// StandardLogger implements hclog.Logger.
func (h *HCLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(h.StandardWriter(opts), "", 0)
}

// StandardWriter implements hclog.Logger.
func (h *HCLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	w := &stdWriter{logger: h, level: hclog.Info}
	if opts != nil {
		w.infer = opts.InferLevels
		if opts.ForceLevel != hclog.NoLevel {
			w.level = opts.ForceLevel
			w.infer = false
		}
	}
	return w
}

// stdWriter turns standard library log lines into leveled records.
// Lines such as "[WARN] memberlist: ..." keep their level when infer is set.
type stdWriter struct {
	logger *HCLogger
	level  hclog.Level
	infer  bool
}

func (w *stdWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, " \t\n"))
	level := w.level
	if w.infer {
		level, line = inferLevel(line, w.level)
	}
	w.logger.Log(level, line)
	return len(p), nil
}

func inferLevel(line string, fallback hclog.Level) (hclog.Level, string) {
	prefixes := []struct {
		tag   string
		level hclog.Level
	}{
		{"[TRACE]", hclog.Trace},
		{"[DEBUG]", hclog.Debug},
		{"[INFO]", hclog.Info},
		{"[WARN]", hclog.Warn},
		{"[ERR]", hclog.Error},
		{"[ERROR]", hclog.Error},
	}
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.tag); ok {
			return p.level, strings.TrimSpace(rest)
		}
	}
	return fallback, line
}

func toSlogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace, hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
