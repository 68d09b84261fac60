package util

import (
	"strconv"
	"strings"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return val
	}
	return defaultValue
}

// ClampLimit parses a limit query value, falling back to def and capping at max
func ClampLimit(s string, def, max int) int {
	n := ParseInt(s, def)
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// OptionalString returns nil for blank input, otherwise the trimmed value
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
