package gatewatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Paths.StateFile = filepath.Join(dir, "state", "state.json")
	cfg.Paths.MetricsFile = filepath.Join(dir, "metrics", "metrics.json")
	cfg.Paths.SnapshotsDir = filepath.Join(dir, "snapshots")
	cfg.Paths.JournalDir = filepath.Join(dir, "journal")
	cfg.Monitor.UpstreamURL = ""
	cfg.Alerts.Desktop = false
	return cfg
}

func TestNewCreatesDirectories(t *testing.T) {
	cfg := testConfig(t)
	if _, err := New(cfg, Options{Quiet: true}); err != nil {
		t.Fatalf("new agent: %v", err)
	}
	for _, d := range []string{
		cfg.Paths.SnapshotsDir,
		cfg.Paths.JournalDir,
		filepath.Dir(cfg.Paths.StateFile),
		filepath.Dir(cfg.Paths.MetricsFile),
	} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Fatalf("directory %s not created: %v", d, err)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Name = ""
	if _, err := New(cfg, Options{Quiet: true}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewRejectsBadHistoryDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.HistoryDSN = "ftp://nope"
	if _, err := New(cfg, Options{Quiet: true}); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestCheckOnceAgainstLocalGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Gateway.URL = srv.URL
	a, err := New(cfg, Options{Quiet: true})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	snap := a.CheckOnce(context.Background())
	if !snap.HTTPHealthy {
		t.Fatalf("http check against local server failed: %+v", snap)
	}
	if snap.LatencyMs < 0 {
		t.Fatalf("latency = %d", snap.LatencyMs)
	}
}

func TestNotifyWritesJournal(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, Options{Quiet: true})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	a.Notify("backup_missing", "backup volume is not mounted", true)

	entries, err := filepath.Glob(filepath.Join(cfg.Paths.JournalDir, "journal-*.md"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("journal files = %v (%v)", entries, err)
	}
	b, err := os.ReadFile(entries[0])
	if err != nil {
		t.Fatal(err)
	}
	if want := "backup_missing"; !strings.Contains(string(b), want) {
		t.Fatalf("journal missing %q:\n%s", want, b)
	}
}
