package native

import (
	"log/slog"

	"github.com/gogpu/g3d/internal/logging"
)

var logger logging.Ptr

// slogger returns the current package logger.
func slogger() *slog.Logger { return logger.Load() }

// SetLogger sets the logger used by the native driver.
// Pass nil to disable logging.
func SetLogger(l *slog.Logger) { logger.Store(l) }
