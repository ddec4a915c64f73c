//go:build unix

package state

import (
	"os"

	"golang.org/x/sys/unix"
)

// PIDLive probes a process with signal 0. EPERM means the process
// exists but belongs to another user, which still counts as live.
func PIDLive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(unix.Signal(0))
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
