//go:build unix && !linux

package launcher

func openWakeFd(int) int {
	return -1
}

func peekExit(int, bool) (bool, bool, error) {
	return false, false, nil
}
