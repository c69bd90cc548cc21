package system

import "context"

// Process identifies a running OS process owned by the supervised service.
type Process struct {
	PID  int32
	Name string
}

// Stats is a point-in-time resource sample for one process.
type Stats struct {
	MemoryMB   float64
	CPUPercent float64
}

// Facade is the narrow OS surface the monitor core depends on.
// Implementations may shell out or read /proc; the core never does either
// directly, so a test double can simulate arbitrary process and mount
// states. It must be safe for sequential reuse across cycles.
type Facade interface {
	// FindProcess returns the first process whose name matches.
	// ok is false when no such process exists; that is not an error.
	FindProcess(name string) (Process, bool, error)
	// ProcessStats samples memory and CPU for a PID.
	ProcessStats(pid int32) (Stats, error)
	// DiskUsagePercent reports used space on the volume containing path.
	DiskUsagePercent(path string) (float64, error)
	// IsVolumeMounted reports whether path is a live mount point.
	IsVolumeMounted(path string) (bool, error)
	// SendSignal delivers a named signal (e.g. "SIGUSR1") to a PID.
	SendSignal(pid int32, name string) error
	// SupervisorRestart runs the external supervisor's restart command.
	// argv is executed as-is; the context bounds its runtime.
	SupervisorRestart(ctx context.Context, argv []string) error
}
