package g3d

import (
	"log/slog"

	"github.com/gogpu/g3d/backend/native"
	"github.com/gogpu/g3d/internal/logging"
	"github.com/gogpu/g3d/loader"
	"github.com/gogpu/g3d/render"
	"github.com/gogpu/g3d/resource"
)

// logger stores the active logger. The zero value logs nothing.
var logger logging.Ptr

func slogger() *slog.Logger { return logger.Load() }

// SetLogger configures the logger for g3d and all its sub-packages.
// By default, g3d produces no log output. Pass nil to restore the silent
// default.
//
// SetLogger is safe for concurrent use.
//
// Log levels used by g3d:
//   - [slog.LevelDebug]: per-frame diagnostics (draw counts, buffer writes)
//   - [slog.LevelInfo]: lifecycle events (device opened, adapter selected)
//   - [slog.LevelWarn]: non-fatal issues (skipped mesh groups, failed loads)
//
// Example:
//
//	g3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	l = logger.Load()

	resource.SetLogger(l)
	render.SetLogger(l)
	native.SetLogger(l)
	loader.SetLogger(l)
}

// Logger returns the current logger used by g3d.
func Logger() *slog.Logger {
	return logger.Load()
}
