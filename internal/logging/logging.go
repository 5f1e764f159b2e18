package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"nutrichat/internal/config"
)

const (
	defaultMaxSizeMB  = 5
	defaultMaxBackups = 5
	defaultMaxAgeDays = 14
)

type ctxKey struct{}

// New builds a logger from cfg. With a file configured, output goes to a
// rotating file; otherwise it goes to fallback.
func New(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return slog.New(newHandler(cfg.Format, fallback, opts)), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return slog.New(newHandler(cfg.Format, io.Discard, opts)), io.NopCloser(nil), err
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
	return slog.New(newHandler(cfg.Format, writer, opts)), writer, nil
}

// Init is New followed by slog.SetDefault.
func Init(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg, fallback)
	slog.SetDefault(logger)
	return logger, closer, err
}

// DefaultFile is where the terminal client logs when nothing else is configured.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(".nutrichat", "logs", "nutrichat.log")
	}
	return filepath.Join(home, ".nutrichat", "logs", "nutrichat.log")
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
