package ui

import (
	"os"
	"strings"
)

// ParseBoolDefault parses a boolean-like environment value with a fallback default.
// True values: 1, true, yes, on, y
// False values: 0, false, no, off, n
// Empty/unknown values return defaultValue.
func ParseBoolDefault(raw string, defaultValue bool) bool {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	default:
		return defaultValue
	}
}

// NoColor reports whether the user asked for uncolored output.
func NoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
