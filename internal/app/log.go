package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// logFileName is the file under the log directory every command appends to.
const logFileName = "recoledger.log"

// recoHandler is a slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Keys inside a group are prefixed with the group name and a dot.
type recoHandler struct {
	w      io.Writer
	opID   string
	prefix string
	attrs  []slog.Attr
}

func (h *recoHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *recoHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		writeAttr(h.w, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(h.w, h.prefix, a)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func writeAttr(w io.Writer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(w, p, ga)
		}
		return
	}
	fmt.Fprintf(w, "\t%s%s=%v", prefix, a.Key, a.Value)
}

func (h *recoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next = append(next, a)
	}
	return &recoHandler{w: h.w, opID: h.opID, prefix: h.prefix, attrs: next}
}

func (h *recoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &recoHandler{w: h.w, opID: h.opID, prefix: h.prefix + name + ".", attrs: h.attrs}
}

// newLogger creates a structured logger that writes to both logDir/recoledger.log and stderr.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	return slog.New(&recoHandler{w: w, opID: opID}), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy tracker.Logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
