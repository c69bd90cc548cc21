package system

import (
	"context"
	"strconv"
)

// Fake is an in-memory Facade for tests. Fields are mutated directly to
// simulate process, disk and mount states; calls are recorded so tests can
// assert on escalation behavior.
type Fake struct {
	Proc        Process
	ProcPresent bool
	ProcErr     error

	Stats    Stats
	StatsErr error

	DiskPct float64
	DiskErr error

	Mounted  bool
	MountErr error

	SignalErr  error
	RestartErr error

	SignalsSent []string // "<name>:<pid>"
	Restarts    [][]string
}

var _ Facade = (*Fake)(nil)

func (f *Fake) FindProcess(string) (Process, bool, error) {
	return f.Proc, f.ProcPresent, f.ProcErr
}

func (f *Fake) ProcessStats(int32) (Stats, error) { return f.Stats, f.StatsErr }

func (f *Fake) DiskUsagePercent(string) (float64, error) { return f.DiskPct, f.DiskErr }

func (f *Fake) IsVolumeMounted(string) (bool, error) { return f.Mounted, f.MountErr }

func (f *Fake) SendSignal(pid int32, name string) error {
	f.SignalsSent = append(f.SignalsSent, name+":"+strconv.Itoa(int(pid)))
	return f.SignalErr
}

func (f *Fake) SupervisorRestart(_ context.Context, argv []string) error {
	cp := append([]string(nil), argv...)
	f.Restarts = append(f.Restarts, cp)
	return f.RestartErr
}
