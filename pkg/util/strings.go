package util

import "strings"

// SplitCommaSeparated splits a comma-separated string and trims whitespace from each element.
// Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Truncate shortens s to at most max bytes, appending a marker with the
// original length when truncation occurred.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}

// RedactQueryPassword masks password values embedded in form or query strings
// before they reach logs.
func RedactQueryPassword(s string) string {
	lower := strings.ToLower(s)
	idx := strings.Index(lower, "password=")
	if idx < 0 {
		return s
	}
	end := strings.IndexByte(s[idx:], '&')
	if end < 0 {
		return s[:idx] + "password=***REDACTED***"
	}
	return s[:idx] + "password=***REDACTED***" + s[idx+end:]
}
