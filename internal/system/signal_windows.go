//go:build windows

package system

import (
	"fmt"
	"os"
	"syscall"
)

func lookupSignal(name string) (syscall.Signal, error) {
	// Windows has no POSIX signal delivery; only termination is supported.
	switch name {
	case "SIGKILL", "SIGTERM", "KILL", "TERM":
		return syscall.SIGKILL, nil
	}
	return 0, fmt.Errorf("signal %q not supported on windows", name)
}

func killProcess(pid int, _ syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
