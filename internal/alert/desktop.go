package alert

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/loykin/gatewatch/internal/history"
)

// Desktop delivers a local desktop notification with a severity-dependent
// sound. Best effort: an absent notification tool is an error the
// dispatcher logs and moves past.
type Desktop struct {
	// run is swapped in tests; defaults to exec.CommandContext + Run.
	run func(ctx context.Context, name string, args ...string) error
}

func NewDesktop() *Desktop {
	return &Desktop{run: func(ctx context.Context, name string, args ...string) error {
		// #nosec G204 -- name and args are built from sanitized alert fields
		return exec.CommandContext(ctx, name, args...).Run()
	}}
}

var _ history.Sink = (*Desktop)(nil)

func (d *Desktop) Send(ctx context.Context, e history.Event) error {
	title := fmt.Sprintf("gatewatch: %s", e.Name)
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q sound name %q",
			e.Message, title, soundForSeverity(e.Severity))
		return d.run(ctx, "osascript", "-e", script)
	case "linux":
		return d.run(ctx, "notify-send", "-u", urgencyForSeverity(e.Severity), title, e.Message)
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", runtime.GOOS)
	}
}

func soundForSeverity(sev string) string {
	switch Severity(sev) {
	case SeverityCritical:
		return "Basso"
	case SeverityWarning:
		return "Funk"
	default:
		return "Pop"
	}
}

func urgencyForSeverity(sev string) string {
	switch Severity(sev) {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "normal"
	default:
		return "low"
	}
}
