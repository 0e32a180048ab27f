package backup

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStore_SaveAndGet(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	vlans := map[int]string{1: "default", 20: "voice"}
	snap, err := s.Save("10.0.0.5", "vlans", "before delete of VLAN 20", vlans)
	if err != nil {
		t.Fatal(err)
	}
	if snap.ID == "" || snap.CreatedAt.IsZero() {
		t.Errorf("snapshot identity missing: %+v", snap)
	}

	got, err := s.Get(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	var restored map[int]string
	if err := json.Unmarshal(got.Data, &restored); err != nil {
		t.Fatal(err)
	}
	if restored[20] != "voice" {
		t.Errorf("restored data = %v", restored)
	}
}

func TestStore_GetRejectsPathTraversal(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if _, err := s.Get("../etc/passwd"); err == nil {
		t.Error("path traversal id should be rejected")
	}
	if err := s.Delete("../x"); err == nil {
		t.Error("path traversal delete should be rejected")
	}
}

func TestStore_ListFiltersAndOrders(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.Save("10.0.0.5", "vlans", "first", 1)
	now = now.Add(time.Minute)
	s.Save("10.0.0.5", "vlans", "second", 2)
	now = now.Add(time.Minute)
	s.Save("10.0.0.6", "vlans", "other switch", 3)

	all, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("List = %d entries, want 3", len(all))
	}
	if all[0].Description != "other switch" {
		t.Errorf("newest first expected, got %q", all[0].Description)
	}

	one, _ := s.List("10.0.0.5")
	if len(one) != 2 || one[0].Description != "second" {
		t.Errorf("filtered list = %+v", one)
	}
}

func TestStore_Cleanup(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		s.Save("10.0.0.5", "vlans", "", i)
		now = now.Add(time.Minute)
	}
	s.Save("10.0.0.6", "vlans", "", 99)

	removed, err := s.Cleanup(2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3 (keep 2 of 5, other switch untouched)", removed)
	}

	left, _ := s.List("10.0.0.5")
	if len(left) != 2 {
		t.Errorf("remaining = %d, want 2", len(left))
	}
	other, _ := s.List("10.0.0.6")
	if len(other) != 1 {
		t.Errorf("other switch lost snapshots: %d", len(other))
	}
}

func TestStore_Delete(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	snap, _ := s.Save("10.0.0.5", "vlans", "", 1)

	if err := s.Delete(snap.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(snap.ID); err == nil {
		t.Error("deleted snapshot should be gone")
	}
	if err := s.Delete(snap.ID); err == nil {
		t.Error("double delete should error")
	}
}
