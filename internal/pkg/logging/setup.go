package logging

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

// Setup configures the global logger: text to stdout, plus an optional JSON
// file handler when json_path is set in config.
func Setup(cfg *config.LoggingConfig, serviceName string) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)

	var handlers []slog.Handler

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	handlers = append(handlers, textHandler)

	if cfg.JSONPath != "" {
		f, err := os.OpenFile(cfg.JSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("Warning: failed to open JSON log file %s: %v", cfg.JSONPath, err)
			log.Println("Continuing with stdout logging only")
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	multiHandler := &MultiHandler{
		handlers: handlers,
	}

	logger := slog.New(multiHandler)
	logger = logger.With("service", serviceName)

	slog.SetDefault(logger)

	return logger, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans records out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var lastErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
