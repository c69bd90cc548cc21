package alert

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/loykin/gatewatch/internal/history"
)

func TestJournalAppendsUnderDailyHeading(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	e1 := history.Event{Type: history.EventAlert, OccurredAt: at, Name: "disk_warning", Severity: "warning", Message: "disk 85%"}
	e2 := history.Event{Type: history.EventRecovery, OccurredAt: at.Add(time.Minute), Name: "graceful_restart", Severity: "info", Message: "signal sent"}
	for _, e := range []history.Event{e1, e2} {
		if err := j.Send(context.Background(), e); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "journal-2025-06-01.md"))
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	s := string(b)
	if strings.Count(s, journalHeading) != 1 {
		t.Fatalf("heading should appear exactly once:\n%s", s)
	}
	if !strings.Contains(s, "- 09:30:00 [warning] disk_warning: disk 85%") {
		t.Fatalf("missing alert line:\n%s", s)
	}
	if !strings.Contains(s, "- 09:31:00 [info] graceful_restart: signal sent") {
		t.Fatalf("missing recovery line:\n%s", s)
	}
}

func TestJournalRollsToNewDay(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	d1 := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)
	_ = j.Send(context.Background(), history.Event{OccurredAt: d1, Name: "a", Severity: "info"})
	_ = j.Send(context.Background(), history.Event{OccurredAt: d2, Name: "b", Severity: "info"})
	for _, name := range []string{"journal-2025-06-01.md", "journal-2025-06-02.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestDesktopCommandPerSeverity(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skipf("no desktop notifier on %s", runtime.GOOS)
	}
	var gotName string
	var gotArgs []string
	d := &Desktop{run: func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}}
	e := history.Event{Name: "memory_critical", Severity: "critical", Message: "memory 1600MB"}
	if err := d.Send(context.Background(), e); err != nil {
		t.Fatalf("send: %v", err)
	}
	switch gotName {
	case "notify-send":
		if gotArgs[1] != "critical" {
			t.Fatalf("urgency = %q, want critical", gotArgs[1])
		}
	case "osascript":
		if !strings.Contains(strings.Join(gotArgs, " "), "Basso") {
			t.Fatalf("critical sound missing: %v", gotArgs)
		}
	default:
		t.Fatalf("unexpected tool %q", gotName)
	}
}

func TestSeverityMappings(t *testing.T) {
	if soundForSeverity("critical") != "Basso" || soundForSeverity("warning") != "Funk" || soundForSeverity("info") != "Pop" {
		t.Fatal("sound mapping broken")
	}
	if urgencyForSeverity("critical") != "critical" || urgencyForSeverity("warning") != "normal" || urgencyForSeverity("info") != "low" {
		t.Fatal("urgency mapping broken")
	}
}
