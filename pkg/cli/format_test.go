package cli

import (
	"strings"
	"testing"
)

func TestColorFunctions(t *testing.T) {
	if !colorEnabled {
		t.Skip("NO_COLOR set in environment")
	}

	tests := []struct {
		name   string
		fn     func(string) string
		prefix string
	}{
		{"Green", Green, "\033[32m"},
		{"Yellow", Yellow, "\033[33m"},
		{"Red", Red, "\033[31m"},
		{"Bold", Bold, "\033[1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("hello")
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("%s should start with %q, got %q", tt.name, tt.prefix, got)
			}
			if !strings.Contains(got, "hello") {
				t.Errorf("%s should contain the input string", tt.name)
			}
			if !strings.HasSuffix(got, "\033[0m") {
				t.Errorf("%s should end with reset code", tt.name)
			}
		})
	}
}

func TestStatusColor(t *testing.T) {
	if !colorEnabled {
		t.Skip("NO_COLOR set in environment")
	}

	tests := []struct {
		status string
		prefix string
	}{
		{"online", "\033[32m"},
		{"offline", "\033[31m"},
		{"error", "\033[31m"},
		{"unknown", "\033[33m"},
	}
	for _, tt := range tests {
		got := StatusColor(tt.status)
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("StatusColor(%q) = %q, want prefix %q", tt.status, got, tt.prefix)
		}
		if !strings.Contains(got, tt.status) {
			t.Errorf("StatusColor(%q) should contain the status word", tt.status)
		}
	}
}
