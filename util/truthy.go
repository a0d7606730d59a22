package util

import "strings"

// Truthy reports whether s spells an enabled switch, as found in
// environment variables like SENTRY_DEBUG.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}

	return false
}
