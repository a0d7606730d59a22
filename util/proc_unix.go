//go:build unix

package util

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// IsProcessAlive reports whether a process with the given pid is still
// running. Where the platform exposes process states, a zombie waiting to
// be reaped counts as dead.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	if err != nil && err != unix.EPERM {
		return false
	}

	return !isZombie(pid)
}

// IsGroupAlive reports whether any process of the group pgid is still
// running. Zombies are ignored like in IsProcessAlive.
func IsGroupAlive(pgid int) bool {
	if pgid <= 1 {
		return false
	}

	err := unix.Kill(-pgid, 0)
	if err != nil && err != unix.EPERM {
		return false
	}

	return groupHasRunning(pgid)
}

// OpenDescriptors counts the descriptors the current process holds, or
// returns -1 if the platform does not expose them.
func OpenDescriptors() int {
	dir := "/dev/fd"
	if runtime.GOOS == "linux" {
		dir = "/proc/self/fd"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1
	}

	// minus the descriptor used to read the directory
	return len(entries) - 1
}
