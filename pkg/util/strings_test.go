package util

import (
	"strings"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"10.0.0.1", []string{"10.0.0.1"}},
		{"10.0.0.1, 10.0.0.2", []string{"10.0.0.1", "10.0.0.2"}},
		{" a ,, b ", []string{"a", "b"}},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("SplitCommaSeparated(%q) = %v, want %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("SplitCommaSeparated(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	got := Truncate(strings.Repeat("x", 20), 10)
	if !strings.HasPrefix(got, "xxxxxxxxxx") || !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("Truncate long = %q", got)
	}
}

func TestRedactQueryPassword(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"username=admin&password=hunter2", "username=admin&password=***REDACTED***"},
		{"password=hunter2&username=admin", "password=***REDACTED***&username=admin"},
		{"username=admin", "username=admin"},
	}

	for _, tt := range tests {
		if got := RedactQueryPassword(tt.input); got != tt.expected {
			t.Errorf("RedactQueryPassword(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
