package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes registry events to an slog.Logger. Useful for
// development when you want to see registry activity on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Failed operations log at Warn,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
		slog.String("op", event.Op.String()),
	}

	if event.NodeIndex != nil {
		attrs = append(attrs, slog.Int("node_index", *event.NodeIndex))
	}
	if event.Unicast != nil {
		attrs = append(attrs, slog.Uint64("unicast", uint64(*event.Unicast)))
	}
	if event.NetIdx != nil {
		attrs = append(attrs, slog.Uint64("net_idx", uint64(*event.NetIdx)))
	}
	if event.AppIdx != nil {
		attrs = append(attrs, slog.Uint64("app_idx", uint64(*event.AppIdx)))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	level := slog.LevelDebug
	if event.Err != "" {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Err))
	}

	a.logger.LogAttrs(context.Background(), level, "registry", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
