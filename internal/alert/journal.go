package alert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/gatewatch/internal/history"
)

const journalHeading = "## Gateway events"

// Journal appends fired alerts and recovery events to a dated,
// human-readable, append-only file (one per calendar day).
type Journal struct {
	dir string
}

func NewJournal(dir string) *Journal { return &Journal{dir: dir} }

var _ history.Sink = (*Journal)(nil)

// Send appends one bulleted line under the day's section heading.
// The heading is written once, when the day's file is created.
func (j *Journal) Send(_ context.Context, e history.Event) error {
	if err := os.MkdirAll(j.dir, 0o700); err != nil {
		return fmt.Errorf("journal dir: %w", err)
	}
	day := e.OccurredAt.Format("2006-01-02")
	path := filepath.Join(j.dir, "journal-"+day+".md")

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if fresh {
		if _, err := fmt.Fprintf(f, "%s — %s\n\n", journalHeading, day); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(f, "- %s [%s] %s: %s\n",
		e.OccurredAt.Format("15:04:05"), e.Severity, e.Name, e.Message)
	return err
}
