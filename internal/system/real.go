package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"
)

// Real implements Facade against the host OS via gopsutil and exec.
type Real struct{}

var _ Facade = Real{}

// FindProcess scans the process table for a name match. Matching is
// case-insensitive and tolerates truncated names reported by the kernel.
func (Real) FindProcess(name string) (Process, bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return Process{}, false, fmt.Errorf("list processes: %w", err)
	}
	want := strings.ToLower(name)
	for _, p := range procs {
		n, err := p.Name()
		if err != nil {
			continue // process may have exited mid-scan
		}
		ln := strings.ToLower(n)
		if ln == want || strings.HasPrefix(want, ln) {
			return Process{PID: p.Pid, Name: n}, true, nil
		}
	}
	return Process{}, false, nil
}

// ProcessStats samples RSS and CPU for a PID.
func (Real) ProcessStats(pid int32) (Stats, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return Stats{}, fmt.Errorf("open pid %d: %w", pid, err)
	}
	var st Stats
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		st.MemoryMB = float64(mi.RSS) / 1024 / 1024
	}
	if cp, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cp
	}
	return st, nil
}

// DiskUsagePercent reports used space for the volume containing path.
func (Real) DiskUsagePercent(path string) (float64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return u.UsedPercent, nil
}

// IsVolumeMounted checks the mount table for path; when the table cannot be
// read, a plain directory probe is the fallback.
func (Real) IsVolumeMounted(path string) (bool, error) {
	clean := filepath.Clean(path)
	parts, err := disk.Partitions(true)
	if err == nil {
		for _, pt := range parts {
			if filepath.Clean(pt.Mountpoint) == clean {
				return true, nil
			}
		}
		return false, nil
	}
	fi, serr := os.Stat(clean)
	if serr != nil {
		if errors.Is(serr, os.ErrNotExist) {
			return false, nil
		}
		return false, serr
	}
	return fi.IsDir(), nil
}

// SendSignal delivers a named signal to a PID.
func (Real) SendSignal(pid int32, name string) error {
	sig, err := lookupSignal(name)
	if err != nil {
		return err
	}
	return killProcess(int(pid), sig)
}

// SupervisorRestart invokes the external restart command. Output is
// discarded; a non-zero exit or a context timeout is the error.
func (Real) SupervisorRestart(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty supervisor command")
	}
	// #nosec G204 -- argv comes from the agent's own config, not user input
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("supervisor restart %q: %w", strings.Join(argv, " "), err)
	}
	return nil
}
