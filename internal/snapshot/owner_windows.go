//go:build windows

package snapshot

import "os"

// Windows has no POSIX uid; ownership verification is skipped there.
func fileOwnedByCurrentUser(_ os.FileInfo) bool { return true }
