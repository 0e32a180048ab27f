package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_EmptyProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "IP", "STATUS")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote output: %q", buf.String())
	}
}

func TestTable_HeadersBeforeFirstRow(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "IP", "STATUS")
	tbl.Row("10.0.0.1", "online")
	tbl.Row("10.0.0.2", "offline")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (headers, divider, 2 rows), got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "IP") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("divider line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "10.0.0.1") {
		t.Errorf("first row = %q", lines[2])
	}
}

func TestTable_ColumnsAligned(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "NAME", "IP")
	tbl.Row("core", "10.0.0.1")
	tbl.Row("access-closet-b", "10.0.0.2")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	col := strings.Index(lines[3], "10.0.0.2")
	if col <= len("core") {
		t.Errorf("second column not padded past longest name: %q", lines[3])
	}
	if strings.Index(lines[2], "10.0.0.1") != col {
		t.Errorf("IP columns misaligned:\n%s", buf.String())
	}
}
