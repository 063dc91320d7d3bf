// Package logging holds the silent default logger shared by g3d packages.
//
// Each package that logs keeps a [Ptr] and reads it through a slogger()
// helper. g3d.SetLogger stores the same logger into every Ptr.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns a logger that discards everything.
func Nop() *slog.Logger { return nop }

// Ptr is an atomically swappable logger. The zero value logs nothing.
type Ptr struct {
	p atomic.Pointer[slog.Logger]
}

// Load returns the current logger.
func (p *Ptr) Load() *slog.Logger {
	if l := p.p.Load(); l != nil {
		return l
	}
	return nop
}

// Store replaces the logger. nil restores the silent default.
func (p *Ptr) Store(l *slog.Logger) {
	if l == nil {
		l = nop
	}
	p.p.Store(l)
}
