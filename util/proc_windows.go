package util

import "golang.org/x/sys/windows"

const stillActive = 259

// IsProcessAlive reports whether a process with the given pid is running.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}

	return code == stillActive
}

// IsGroupAlive has no windows equivalent for arbitrary groups and checks
// the group leader only.
func IsGroupAlive(pgid int) bool {
	return IsProcessAlive(pgid)
}

// OpenDescriptors is not available on windows.
func OpenDescriptors() int {
	return -1
}
