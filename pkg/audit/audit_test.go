package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("post", "https://10.0.0.5/rest/v10.09/login",
		"username=admin&password=hunter2", 200, "ok", 150*time.Millisecond)

	if e.ID == "" {
		t.Error("ID should be set")
	}
	if e.Method != "POST" {
		t.Errorf("Method = %q, want POST", e.Method)
	}
	if e.SwitchIP != "10.0.0.5" {
		t.Errorf("SwitchIP = %q, want 10.0.0.5", e.SwitchIP)
	}
	if strings.Contains(e.RequestData, "hunter2") {
		t.Errorf("password leaked into request data: %q", e.RequestData)
	}
	if !e.Success {
		t.Error("200 should be a success")
	}
	if e.Category != CategoryAuth {
		t.Errorf("Category = %q, want %q", e.Category, CategoryAuth)
	}
	if e.DurationMS != 150 {
		t.Errorf("DurationMS = %v, want 150", e.DurationMS)
	}
}

func TestEvent_WithError(t *testing.T) {
	e := NewEvent("GET", "https://10.0.0.5/rest/v10.09/system", "", 0, "", time.Millisecond)
	e.WithError(errors.New("connection refused"))

	if e.Success {
		t.Error("transport error should not be a success")
	}
	if e.Error != "connection refused" {
		t.Errorf("Error = %q", e.Error)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		url      string
		method   string
		expected string
	}{
		{"https://x/rest/v10.09/login", "POST", CategoryAuth},
		{"https://x/rest/v10.09/logout", "POST", CategoryCleanup},
		{"https://x/rest/v10.09/system/vlans/10", "PUT", CategoryVLAN},
		{"https://x/rest/v10.09/system", "GET", CategorySystem},
		{"https://x/other", "GET", CategoryRetrieval},
		{"https://x/other", "DELETE", CategoryDeletion},
		{"https://x/other", "PATCH", CategoryConfig},
	}

	for _, tt := range tests {
		if got := Categorize(tt.url, tt.method); got != tt.expected {
			t.Errorf("Categorize(%q, %q) = %q, want %q", tt.url, tt.method, got, tt.expected)
		}
	}
}

func TestHistory_RingAndFilter(t *testing.T) {
	h := NewHistory(3)

	for i := 0; i < 5; i++ {
		status := 200
		if i == 4 {
			status = 500
		}
		h.Record(NewEvent("GET", "https://10.0.0.5/rest/v10.09/system", "", status, "", time.Millisecond))
	}

	all := h.Recent(Filter{})
	if len(all) != 3 {
		t.Fatalf("history retained %d events, want 3", len(all))
	}

	failures := h.Recent(Filter{FailureOnly: true})
	if len(failures) != 1 || failures[0].Status != 500 {
		t.Errorf("failure filter = %v", failures)
	}

	other := h.Recent(Filter{SwitchIP: "10.0.0.99"})
	if len(other) != 0 {
		t.Errorf("filter by unknown switch = %v", other)
	}
}

func TestHistory_Statistics(t *testing.T) {
	h := NewHistory(10)
	h.Record(NewEvent("GET", "https://10.0.0.5/rest/v10.09/system", "", 200, "", 10*time.Millisecond))
	h.Record(NewEvent("PUT", "https://10.0.0.5/rest/v10.09/system/vlans/2", "", 201, "", 20*time.Millisecond))
	h.Record(NewEvent("GET", "https://10.0.0.6/rest/v10.09/system", "", 502, "", 30*time.Millisecond))

	s := h.Statistics()
	if s.TotalCalls != 3 || s.SuccessfulCalls != 2 || s.FailedCalls != 1 {
		t.Errorf("Stats = %+v", s)
	}
	if s.AverageDuration != 20 {
		t.Errorf("AverageDuration = %v, want 20", s.AverageDuration)
	}
	if s.Switches["10.0.0.5"] != 2 {
		t.Errorf("Switches = %v", s.Switches)
	}
	if s.Categories[CategoryVLAN] != 1 {
		t.Errorf("Categories = %v", s.Categories)
	}

	if n := h.Clear(); n != 3 {
		t.Errorf("Clear = %d, want 3", n)
	}
	if s := h.Statistics(); s.TotalCalls != 0 {
		t.Errorf("stats after clear = %+v", s)
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	l, err := NewFileLogger(path, RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}

	l.Record(NewEvent("GET", "https://10.0.0.5/rest/v10.09/system", "", 200, "body", time.Millisecond))
	l.Record(NewEvent("POST", "https://10.0.0.5/rest/v10.09/login", "password=x", 401, "", time.Millisecond))
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("malformed log line: %v", err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("log lines = %d, want 2", lines)
	}
}

func TestHistory_Forward(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(filepath.Join(dir, "audit.jsonl"), RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	h := NewHistory(10)
	h.Forward(l)
	h.Record(NewEvent("GET", "https://10.0.0.5/rest/v10.09/system", "", 200, "", time.Millisecond))

	data, err := os.ReadFile(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "10.0.0.5") {
		t.Error("forwarded event not written to file")
	}
}
