package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
)

// procStat holds the fields of /proc/<pid>/stat we care about.
type procStat struct {
	state byte
	pgrp  int
}

func readProcStat(path string) (procStat, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return procStat{}, false
	}

	// comm may contain spaces and parens, the fields start after the last ')'
	i := bytes.LastIndexByte(data, ')')
	if i < 0 {
		return procStat{}, false
	}

	fields := bytes.Fields(data[i+1:])
	if len(fields) < 3 || len(fields[0]) == 0 {
		return procStat{}, false
	}

	pgrp, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return procStat{}, false
	}

	return procStat{state: fields[0][0], pgrp: pgrp}, true
}

func isDead(state byte) bool {
	return state == 'Z' || state == 'X'
}

func isZombie(pid int) bool {
	st, ok := readProcStat(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if !ok {
		// gone between kill and read
		return true
	}

	return isDead(st.state)
}

func groupHasRunning(pgid int) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return true
	}

	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}

		st, ok := readProcStat(filepath.Join("/proc", e.Name(), "stat"))
		if ok && st.pgrp == pgid && !isDead(st.state) {
			return true
		}
	}

	return false
}
