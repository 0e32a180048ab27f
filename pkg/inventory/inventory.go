// Package inventory tracks the switches known to the dashboard: directly
// managed devices addressed by IP and Central-managed devices addressed by
// serial number. The store is in-memory with an optional YAML seed file; it
// also acts as the saved-credential source for session authentication.
package inventory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/util"
)

// Kind says how a switch is managed.
type Kind string

const (
	KindDirect  Kind = "direct"
	KindCentral Kind = "central"
)

// Status is the last known reachability of a switch.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Switch is one inventory entry. Password is never serialized outward.
type Switch struct {
	ID     string `json:"id" yaml:"id,omitempty"`
	Name   string `json:"name" yaml:"name"`
	Kind   Kind   `json:"kind" yaml:"kind,omitempty"`
	IP     string `json:"ip,omitempty" yaml:"ip,omitempty"`
	Serial string `json:"serial,omitempty" yaml:"serial,omitempty"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"password,omitempty"`

	Status    Status    `json:"status" yaml:"-"`
	LastSeen  time.Time `json:"last_seen,omitzero" yaml:"-"`
	LastError string    `json:"last_error,omitempty" yaml:"-"`
	AddedAt   time.Time `json:"added_at" yaml:"-"`

	// Device identity learned from the last successful connection test.
	Model    string `json:"model,omitempty" yaml:"-"`
	Firmware string `json:"firmware,omitempty" yaml:"-"`

	// Central-managed binding details, filled in after device lookup.
	CentralGroup string `json:"central_group,omitempty" yaml:"-"`
}

// Store holds the inventory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*Switch
	now  func() time.Time
}

// NewStore creates an empty inventory.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Switch), now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add registers a switch. Direct entries need an IP unique across the
// inventory; Central entries need a serial. The stored copy gets an ID and
// timestamps; the returned value is a snapshot.
func (s *Store) Add(sw Switch) (Switch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sw.Kind == "" {
		if sw.Serial != "" && sw.IP == "" {
			sw.Kind = KindCentral
		} else {
			sw.Kind = KindDirect
		}
	}
	switch sw.Kind {
	case KindDirect:
		if sw.IP == "" {
			return Switch{}, fmt.Errorf("direct switch %q needs an IP address", sw.Name)
		}
		if existing := s.findByIPLocked(sw.IP); existing != nil {
			return Switch{}, fmt.Errorf("switch with IP %s already exists (%s)", sw.IP, existing.Name)
		}
	case KindCentral:
		if sw.Serial == "" {
			return Switch{}, fmt.Errorf("central switch %q needs a serial number", sw.Name)
		}
		if existing := s.findBySerialLocked(sw.Serial); existing != nil {
			return Switch{}, fmt.Errorf("switch with serial %s already exists (%s)", sw.Serial, existing.Name)
		}
	default:
		return Switch{}, fmt.Errorf("unknown switch kind %q", sw.Kind)
	}

	if sw.Name == "" {
		if sw.IP != "" {
			sw.Name = sw.IP
		} else {
			sw.Name = sw.Serial
		}
	}
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	if sw.Status == "" {
		sw.Status = StatusUnknown
	}
	sw.AddedAt = s.now()

	stored := sw
	s.byID[sw.ID] = &stored
	util.WithSwitch(sw.IP).Infof("inventory: added %s switch %q", sw.Kind, sw.Name)
	return sw, nil
}

func (s *Store) findByIPLocked(ip string) *Switch {
	for _, sw := range s.byID {
		if sw.Kind == KindDirect && sw.IP == ip {
			return sw
		}
	}
	return nil
}

func (s *Store) findBySerialLocked(serial string) *Switch {
	for _, sw := range s.byID {
		if sw.Kind == KindCentral && sw.Serial == serial {
			return sw
		}
	}
	return nil
}

// Get returns a snapshot by ID.
func (s *Store) Get(id string) (Switch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw, ok := s.byID[id]
	if !ok {
		return Switch{}, false
	}
	return *sw, true
}

// GetByIP returns a snapshot of the direct switch at ip.
func (s *Store) GetByIP(ip string) (Switch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sw := s.findByIPLocked(ip); sw != nil {
		return *sw, true
	}
	return Switch{}, false
}

// List returns all entries sorted by name.
func (s *Store) List() []Switch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Switch, 0, len(s.byID))
	for _, sw := range s.byID {
		out = append(out, *sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update applies fn to the entry under the store lock. The ID, Kind and
// AddedAt fields are preserved regardless of what fn does.
func (s *Store) Update(id string, fn func(*Switch)) (Switch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw, ok := s.byID[id]
	if !ok {
		return Switch{}, false
	}
	keptID, keptKind, keptAdded := sw.ID, sw.Kind, sw.AddedAt
	fn(sw)
	sw.ID, sw.Kind, sw.AddedAt = keptID, keptKind, keptAdded
	return *sw, true
}

// Remove deletes an entry by ID.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	return true
}

// MarkStatus records the outcome of a connectivity check against the direct
// switch at ip. Online updates LastSeen and clears LastError.
func (s *Store) MarkStatus(ip string, status Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw := s.findByIPLocked(ip)
	if sw == nil {
		return
	}
	sw.Status = status
	sw.LastError = errMsg
	if status == StatusOnline {
		sw.LastSeen = s.now()
		sw.LastError = ""
	}
}

// MarkIdentity records the platform and firmware reported by the direct
// switch at ip.
func (s *Store) MarkIdentity(ip, model, firmware string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw := s.findByIPLocked(ip)
	if sw == nil {
		return
	}
	if model != "" {
		sw.Model = model
	}
	if firmware != "" {
		sw.Firmware = firmware
	}
}

// SaveCredentials stores working credentials against the direct switch at
// ip, so later sessions can skip the default pairs.
func (s *Store) SaveCredentials(ip, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw := s.findByIPLocked(ip)
	if sw == nil {
		return
	}
	sw.Username = username
	sw.Password = password
}

// SavedCredentials implements cxapi.CredentialStore.
func (s *Store) SavedCredentials(ip string) (cxapi.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw := s.findByIPLocked(ip)
	if sw == nil || sw.Username == "" {
		return cxapi.Credentials{}, false
	}
	return cxapi.Credentials{Username: sw.Username, Password: sw.Password}, true
}

// Counts returns how many switches sit in each status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Status]int)
	for _, sw := range s.byID {
		out[sw.Status]++
	}
	return out
}

// exportEntry is the JSON shape for export/import. Unlike the API view it
// carries the password, so operators can move an inventory between
// deployments.
type exportEntry struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	IP       string `json:"ip,omitempty"`
	Serial   string `json:"serial,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Export serializes the inventory for download.
func (s *Store) Export() ([]byte, error) {
	entries := make([]exportEntry, 0)
	for _, sw := range s.List() {
		entries = append(entries, exportEntry{
			Name: sw.Name, Kind: sw.Kind, IP: sw.IP, Serial: sw.Serial,
			Username: sw.Username, Password: sw.Password,
		})
	}
	return json.MarshalIndent(map[string]any{"switches": entries}, "", "  ")
}

// Import merges exported entries into the store. Duplicates are skipped, not
// errors: re-importing the same file is harmless. Returns how many entries
// were added.
func (s *Store) Import(data []byte) (int, error) {
	var payload struct {
		Switches []exportEntry `json:"switches"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("parsing inventory import: %w", err)
	}

	added := 0
	for _, e := range payload.Switches {
		_, err := s.Add(Switch{
			Name: e.Name, Kind: e.Kind, IP: e.IP, Serial: e.Serial,
			Username: e.Username, Password: e.Password,
		})
		if err != nil {
			util.Debugf("inventory import skipped %q: %v", e.Name, err)
			continue
		}
		added++
	}
	return added, nil
}
