//go:build !windows

package snapshot

import (
	"os"
	"syscall"
)

// fileOwnedByCurrentUser checks the file's uid against the agent's.
func fileOwnedByCurrentUser(fi os.FileInfo) bool {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return int(st.Uid) == os.Getuid()
}
