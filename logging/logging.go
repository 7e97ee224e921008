// Package logging provides the module-wide default logger used by repo
// (which passes it on to the lock manager and stage) and by the CLI when
// the caller doesn't supply one via a WithLogger option. Used on their own,
// lock and stage fall back to slog.Default() instead.
package logging

import (
	"context"
	"os"

	"golang.org/x/exp/slog"
)

var (
	defaultLevel   slog.LevelVar
	defaultHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &defaultLevel,
	})
	defaultLogger  = slog.New(defaultHandler)
	disabledLogger = slog.New(&disabledHandler{})
)

// disabledHandler is a slog.Handler enabled for no level, used by Disabled.
type disabledHandler struct{}

func (d *disabledHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (d *disabledHandler) Handle(context.Context, slog.Record) error { return nil }
func (d *disabledHandler) WithAttrs([]slog.Attr) slog.Handler        { return d }
func (d *disabledHandler) WithGroup(string) slog.Handler             { return d }

// Default returns the module's default logger, writing text-formatted
// records to stderr at the level set by SetDefaultLevel (Info unless
// changed).
func Default() *slog.Logger { return defaultLogger }

// SetDefaultLevel adjusts the level of the logger returned by Default.
func SetDefaultLevel(l slog.Level) { defaultLevel.Set(l) }

// Disabled returns a logger that discards everything, for callers that
// want the logging call sites to run without any output (e.g. --quiet).
func Disabled() *slog.Logger { return disabledLogger }
