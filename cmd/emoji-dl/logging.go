package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hackclub/slack-emoji-dl/internal/download"
)

// runLog writes to the console and, when enabled, to a log file.
//
// The file keeps the whole run even while the progress bar hides
// per-emoji lines from the console.
type runLog struct {
	console *slog.Logger
	file    *slog.Logger // nil when file logging is off
	all     *slog.Logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	return slog.New(newHandler(w, format, logLevel(verbose)))
}

// newRunLog logs to console and, if file is not nil, to file as well.
// The file always gets per-emoji lines; verbose only affects the console.
func newRunLog(console io.Writer, file io.Writer, format string, verbose bool) *runLog {
	l := &runLog{console: newLogger(console, format, verbose)}
	l.all = l.console
	if file != nil {
		l.file = newLogger(file, format, true)
		l.all = slog.New(fanoutHandler{l.console.Handler(), l.file.Handler()})
	}
	return l
}

// openLogFile creates path, and its directory, for appending.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// event logs a manager event. Events hidden from the console still reach
// the log file.
func (l *runLog) event(ctx context.Context, event download.ProgressEvent, showOnConsole bool) {
	switch {
	case showOnConsole:
		logEvent(ctx, l.all, event)
	case l.file != nil:
		logEvent(ctx, l.file, event)
	}
}

// logEvent forwards a manager event to logger at the matching level.
func logEvent(ctx context.Context, logger *slog.Logger, event download.ProgressEvent) {
	level := slog.LevelInfo
	switch event.Level {
	case download.LevelVerbose:
		level = slog.LevelDebug
	case download.LevelWarning:
		level = slog.LevelWarn
	case download.LevelError:
		level = slog.LevelError
	}
	logger.LogAttrs(ctx, level, event.Message, event.Attrs...)
}

// fanoutHandler passes each record to every handler enabled for its level.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithGroup(name)
	}
	return out
}
