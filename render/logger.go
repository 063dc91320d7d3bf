package render

import (
	"log/slog"

	"github.com/gogpu/g3d/internal/logging"
)

var logger logging.Ptr

func slogger() *slog.Logger { return logger.Load() }

// SetLogger sets the logger used by the render package.
// Pass nil to disable logging.
func SetLogger(l *slog.Logger) { logger.Store(l) }
