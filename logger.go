package framefx

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/framefx/compute"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports
// false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger for framefx and its sub-packages.
// By default framefx produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by framefx:
//   - [slog.LevelDebug]: per-frame diagnostics (stage timing, dropped frames)
//   - [slog.LevelInfo]: lifecycle events (compute backend selected)
//   - [slog.LevelWarn]: recoverable failures (GPU fallback, malformed
//     buffers, failed pipeline stages)
//
// Example:
//
//	framefx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	compute.SetLogger(l)
}

// Logger returns the current logger used by framefx.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
