// Package backup persists configuration snapshots taken before mutating
// operations, so an accidental VLAN change can be reconstructed by hand.
// Snapshots are plain JSON files, one per snapshot, in a flat directory.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cxdash/cxdash/pkg/util"
)

// Snapshot is one saved configuration state.
type Snapshot struct {
	ID          string          `json:"id"`
	SwitchIP    string          `json:"switch_ip"`
	Kind        string          `json:"kind"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Data        json.RawMessage `json:"data"`
}

// Store writes snapshots under one directory. Safe for concurrent use.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates the backup directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Save writes a snapshot and returns it with ID and timestamp filled in.
func (s *Store) Save(switchIP, kind, description string, data any) (Snapshot, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding snapshot data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          uuid.NewString(),
		SwitchIP:    switchIP,
		Kind:        kind,
		Description: description,
		CreatedAt:   s.now(),
		Data:        raw,
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Snapshot{}, err
	}
	if err := os.WriteFile(s.path(snap.ID), payload, 0o644); err != nil {
		return Snapshot{}, fmt.Errorf("writing snapshot: %w", err)
	}
	util.WithSwitch(switchIP).Infof("backup: saved %s snapshot %s", kind, snap.ID)
	return snap, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get loads one snapshot by ID.
func (s *Store) Get(id string) (Snapshot, error) {
	if strings.ContainsAny(id, "/\\") {
		return Snapshot{}, fmt.Errorf("invalid snapshot id %q", id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot %s: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parsing snapshot %s: %w", id, err)
	}
	return snap, nil
}

// List returns all snapshots, newest first, optionally filtered by switch.
// Unreadable files are skipped rather than failing the whole listing.
func (s *Store) List(switchIP string) ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		snap, err := s.Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			util.Warnf("backup: skipping unreadable %s: %v", e.Name(), err)
			continue
		}
		if switchIP != "" && snap.SwitchIP != switchIP {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes one snapshot.
func (s *Store) Delete(id string) error {
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid snapshot id %q", id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	return nil
}

// Cleanup keeps the newest keep snapshots per switch and deletes the rest.
// Returns how many were removed.
func (s *Store) Cleanup(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	all, err := s.List("")
	if err != nil {
		return 0, err
	}

	bySwitch := make(map[string][]Snapshot)
	for _, snap := range all {
		bySwitch[snap.SwitchIP] = append(bySwitch[snap.SwitchIP], snap)
	}

	removed := 0
	for _, snaps := range bySwitch {
		if len(snaps) <= keep {
			continue
		}
		// List is newest-first, so everything past keep is stale.
		for _, snap := range snaps[keep:] {
			if err := s.Delete(snap.ID); err != nil {
				util.Warnf("backup cleanup: %v", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		util.Infof("backup: cleanup removed %d snapshots", removed)
	}
	return removed, nil
}
