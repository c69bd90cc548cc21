package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterNilWithoutFile(t *testing.T) {
	var c Config
	if w := c.Writer(); w != nil {
		t.Fatalf("expected nil writer for empty file, got %T", w)
	}
}

func TestWriterDefaults(t *testing.T) {
	dir := t.TempDir()
	c := Config{File: filepath.Join(dir, "agent.log")}
	w := c.Writer()
	if w == nil {
		t.Fatal("expected writer")
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if _, err := os.Stat(c.File); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestAlertLevelRendered(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: renameAlertLevel})
	lg := slog.New(h)
	lg.Log(context.Background(), LevelAlert, "disk full", "type", "disk_critical")
	out := buf.String()
	if !strings.Contains(out, "level=ALERT") {
		t.Fatalf("expected ALERT level label, got: %s", out)
	}
	if strings.Contains(out, "ERROR+4") {
		t.Fatalf("raw slog level leaked: %s", out)
	}
}

func TestColorHandlerAlertLabel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	lg := slog.New(h)
	lg.Log(context.Background(), LevelAlert, "backup volume missing")
	if !strings.Contains(buf.String(), "ALERT") {
		t.Fatalf("expected ALERT label in output: %s", buf.String())
	}
}

func TestMultiHandlerFanout(t *testing.T) {
	var a, b bytes.Buffer
	m := multiHandler{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	}
	lg := slog.New(m)
	lg.Info("cycle complete", "cycle", 7)
	for i, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), "cycle complete") {
			t.Fatalf("handler %d missed record: %q", i, buf.String())
		}
	}
}
