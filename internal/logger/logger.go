package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 5  // number of rotated files to keep
	DefaultMaxAgeDays = 0  // unlimited; rotation is size-driven
)

// LevelAlert sits above slog.LevelError and marks a fired (non-suppressed)
// alert in the audit log. Absence of ALERT lines over time is itself a
// signal the dispatcher stayed quiet.
const LevelAlert = slog.Level(12)

// Config describes the agent's own log destination.
// If File is empty, logging goes to stderr only.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

// Writer returns the rotating file writer for the agent log, or nil when no
// file is configured.
func (c Config) Writer() io.WriteCloser {
	if c.File == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// New builds the agent logger. File output (when configured) is plain text
// through lumberjack; foreground runs additionally get the colored stderr
// handler. ALERT records are rendered with their own label.
func New(c Config, foreground bool) *slog.Logger {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: renameAlertLevel}

	var hs []slog.Handler
	if w := c.Writer(); w != nil {
		hs = append(hs, slog.NewTextHandler(w, opts))
	}
	if foreground || len(hs) == 0 {
		hs = append(hs, NewColorTextHandler(os.Stderr, opts, true))
	}
	if len(hs) == 1 {
		return slog.New(hs[0])
	}
	return slog.New(multiHandler(hs))
}

// renameAlertLevel rewrites the synthetic alert level as "ALERT" instead of
// slog's default "ERROR+4".
func renameAlertLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAlert {
			a.Value = slog.StringValue("ALERT")
		}
	}
	return a
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
