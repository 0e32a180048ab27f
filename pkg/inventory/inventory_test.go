package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_AddAndLookup(t *testing.T) {
	s := NewStore()

	sw, err := s.Add(Switch{Name: "core-1", IP: "10.0.0.5"})
	if err != nil {
		t.Fatal(err)
	}
	if sw.ID == "" {
		t.Error("ID should be assigned")
	}
	if sw.Kind != KindDirect {
		t.Errorf("Kind = %q, want direct", sw.Kind)
	}
	if sw.Status != StatusUnknown {
		t.Errorf("Status = %q, want unknown", sw.Status)
	}

	got, ok := s.GetByIP("10.0.0.5")
	if !ok || got.Name != "core-1" {
		t.Errorf("GetByIP = %+v, %v", got, ok)
	}
	if _, ok := s.Get(sw.ID); !ok {
		t.Error("Get by ID failed")
	}
}

func TestStore_DuplicateIPRejected(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(Switch{Name: "a", IP: "10.0.0.5"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Switch{Name: "b", IP: "10.0.0.5"}); err == nil {
		t.Error("duplicate IP should be rejected")
	}
}

func TestStore_CentralNeedsSerial(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(Switch{Name: "edge", Kind: KindCentral}); err == nil {
		t.Error("central entry without serial should be rejected")
	}
	sw, err := s.Add(Switch{Name: "edge", Serial: "SG123"})
	if err != nil {
		t.Fatal(err)
	}
	if sw.Kind != KindCentral {
		t.Errorf("serial-only entry should infer central kind, got %q", sw.Kind)
	}
}

func TestStore_MarkStatus(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	s.Add(Switch{Name: "core-1", IP: "10.0.0.5"})

	s.MarkStatus("10.0.0.5", StatusError, "invalid credentials")
	sw, _ := s.GetByIP("10.0.0.5")
	if sw.Status != StatusError || sw.LastError == "" {
		t.Errorf("after error: %+v", sw)
	}

	s.MarkStatus("10.0.0.5", StatusOnline, "")
	sw, _ = s.GetByIP("10.0.0.5")
	if sw.Status != StatusOnline || !sw.LastSeen.Equal(now) || sw.LastError != "" {
		t.Errorf("after online: %+v", sw)
	}

	counts := s.Counts()
	if counts[StatusOnline] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}

func TestStore_SavedCredentials(t *testing.T) {
	s := NewStore()
	s.Add(Switch{Name: "core-1", IP: "10.0.0.5"})

	if _, ok := s.SavedCredentials("10.0.0.5"); ok {
		t.Error("no credentials saved yet")
	}

	s.SaveCredentials("10.0.0.5", "admin", "hunter2")
	creds, ok := s.SavedCredentials("10.0.0.5")
	if !ok || creds.Username != "admin" || creds.Password != "hunter2" {
		t.Errorf("SavedCredentials = %+v, %v", creds, ok)
	}

	if _, ok := s.SavedCredentials("10.0.0.99"); ok {
		t.Error("unknown switch should have no credentials")
	}
}

func TestStore_UpdatePreservesIdentity(t *testing.T) {
	s := NewStore()
	sw, _ := s.Add(Switch{Name: "core-1", IP: "10.0.0.5"})

	updated, ok := s.Update(sw.ID, func(x *Switch) {
		x.Name = "core-renamed"
		x.ID = "forged"
	})
	if !ok || updated.Name != "core-renamed" {
		t.Fatalf("Update = %+v, %v", updated, ok)
	}
	if updated.ID != sw.ID {
		t.Error("ID must survive updates")
	}
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	src := NewStore()
	src.Add(Switch{Name: "core-1", IP: "10.0.0.5", Username: "admin", Password: "pw"})
	src.Add(Switch{Name: "edge-7", Serial: "SG123"})

	data, err := src.Export()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pw") {
		t.Error("export should carry passwords for migration")
	}

	dst := NewStore()
	added, err := dst.Import(data)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("Import added %d, want 2", added)
	}
	if creds, ok := dst.SavedCredentials("10.0.0.5"); !ok || creds.Password != "pw" {
		t.Errorf("credentials lost in round trip: %+v, %v", creds, ok)
	}

	// Re-import is harmless.
	added, err = dst.Import(data)
	if err != nil || added != 0 {
		t.Errorf("re-import = %d, %v; want 0, nil", added, err)
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yml")
	seed := `
switches:
  - name: core-1
    ip: 10.0.0.5
    username: admin
    password: admin
  - name: broken-entry
central:
  - name: edge-7
    serial: SG123XYZ
`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	if err := s.LoadSeed(path); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("loaded %d switches, want 2 (bad entry skipped)", len(list))
	}
	if _, ok := s.GetByIP("10.0.0.5"); !ok {
		t.Error("seeded direct switch missing")
	}
	var foundCentral bool
	for _, sw := range list {
		if sw.Serial == "SG123XYZ" && sw.Kind == KindCentral {
			foundCentral = true
		}
	}
	if !foundCentral {
		t.Error("seeded central switch missing")
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	s := NewStore()
	if err := s.LoadSeed("/nonexistent/inventory.yml"); err == nil {
		t.Error("missing seed file should error")
	}
}
