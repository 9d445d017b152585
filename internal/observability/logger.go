package observability

import (
	"log/slog"
	"os"
)

// NewLogger creates the service-wide structured logger.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
