// Package manager implements switch operations behind a uniform backend
// interface. Directly managed switches go through the on-device REST API
// with session, cache and backup wiring; Central-managed switches go through
// the Central cloud API. The factory picks the backend from the inventory
// entry.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/cxdash/cxdash/pkg/backup"
	"github.com/cxdash/cxdash/pkg/cache"
	"github.com/cxdash/cxdash/pkg/central"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
)

// VLANInfo is one VLAN as shown in the dashboard.
type VLANInfo struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Admin string `json:"admin,omitempty"`
}

// InterfaceInfo is one physical port.
type InterfaceInfo struct {
	Name        string `json:"name"`
	AdminState  string `json:"admin_state"`
	LinkState   string `json:"link_state"`
	LinkSpeed   int64  `json:"link_speed,omitempty"`
	Description string `json:"description,omitempty"`
}

// ComponentHealth is the state of one PSU or fan.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// PoEStatus summarizes chassis PoE power.
type PoEStatus struct {
	AvailableWatts float64 `json:"available_watts"`
	DrawnWatts     float64 `json:"drawn_watts"`
}

// Overview is the per-switch summary panel.
type Overview struct {
	Hostname     string              `json:"hostname"`
	Platform     string              `json:"platform"`
	Firmware     string              `json:"firmware"`
	VLANCount    int                 `json:"vlan_count"`
	PortCount    int                 `json:"port_count"`
	PSUs         []ComponentHealth   `json:"psus,omitempty"`
	Fans         []ComponentHealth   `json:"fans,omitempty"`
	PoE          *PoEStatus          `json:"poe,omitempty"`
	Capabilities cxapi.CapabilitySet `json:"capabilities"`
}

// ConnectionResult is what a connectivity test reports.
type ConnectionResult struct {
	Reachable    bool                 `json:"reachable"`
	Hostname     string               `json:"hostname,omitempty"`
	Platform     string               `json:"platform,omitempty"`
	Firmware     string               `json:"firmware,omitempty"`
	Username     string               `json:"username,omitempty"`
	Source       cxapi.Source         `json:"credential_source,omitempty"`
	Mode         cxapi.ManagementMode `json:"management_mode"`
	Capabilities cxapi.CapabilitySet  `json:"capabilities"`
}

// Backend is the per-switch operation surface. Both management paths
// implement it; callers never branch on the switch kind.
type Backend interface {
	TestConnection(ctx context.Context) (*ConnectionResult, error)
	Overview(ctx context.Context) (*Overview, error)
	ListVLANs(ctx context.Context) ([]VLANInfo, error)
	CreateVLAN(ctx context.Context, id int, name string) error
	UpdateVLAN(ctx context.Context, id int, name string) error
	DeleteVLAN(ctx context.Context, id int) error
	ListInterfaces(ctx context.Context) ([]InterfaceInfo, error)
}

// Manager bundles the shared machinery behind all backends.
type Manager struct {
	Sessions  *cxapi.SessionManager
	Probe     *cxapi.CapabilityProbe
	Inventory *inventory.Store
	Backups   *backup.Store
	Central   *central.Client

	vlans      *cache.Cache[[]VLANInfo]
	interfaces *cache.Cache[[]InterfaceInfo]
	overviews  *cache.Cache[*Overview]
}

// New wires a manager. Central may be nil when no Central credentials are
// configured; Backups may be nil to disable snapshots.
func New(sessions *cxapi.SessionManager, probe *cxapi.CapabilityProbe, inv *inventory.Store, backups *backup.Store, centralClient *central.Client) *Manager {
	return &Manager{
		Sessions:   sessions,
		Probe:      probe,
		Inventory:  inv,
		Backups:    backups,
		Central:    centralClient,
		vlans:      cache.New[[]VLANInfo](cache.TTLListing),
		interfaces: cache.New[[]InterfaceInfo](cache.TTLListing),
		overviews:  cache.New[*Overview](cache.TTLOverview),
	}
}

// SetTTLs replaces the default cache lifetimes. Non-positive values keep
// the current lifetime.
func (m *Manager) SetTTLs(listing, overview time.Duration) {
	m.vlans.SetDefaultTTL(listing)
	m.interfaces.SetDefaultTTL(listing)
	m.overviews.SetDefaultTTL(overview)
}

// SetClock overrides the time source of every internal cache. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.vlans.SetClock(now)
	m.interfaces.SetClock(now)
	m.overviews.SetClock(now)
	if m.Probe != nil {
		m.Probe.SetClock(now)
	}
}

// invalidateSwitch drops every cached view of one switch. Called after any
// mutation so the next read reflects the device, not the cache.
func (m *Manager) invalidateSwitch(ip string) {
	prefix := ip + ":"
	m.vlans.InvalidatePrefix(prefix)
	m.interfaces.InvalidatePrefix(prefix)
	m.overviews.InvalidatePrefix(prefix)
	if m.Probe != nil {
		m.Probe.Invalidate(ip)
	}
}

// Backend returns the operation surface for an inventory entry.
func (m *Manager) Backend(sw inventory.Switch) (Backend, error) {
	switch sw.Kind {
	case inventory.KindDirect:
		return &directBackend{m: m, ip: sw.IP}, nil
	case inventory.KindCentral:
		if m.Central == nil {
			return nil, fmt.Errorf("switch %s is Central-managed but no Central API access is configured", sw.Name)
		}
		return &centralBackend{m: m, serial: sw.Serial}, nil
	default:
		return nil, fmt.Errorf("switch %s has unknown kind %q", sw.Name, sw.Kind)
	}
}

// DirectBackend returns the direct operation surface for a raw IP, for
// callers probing a switch before it is in the inventory.
func (m *Manager) DirectBackend(ip string) Backend {
	return &directBackend{m: m, ip: ip}
}

// DirectBackendWith is DirectBackend pinned to one credential pair: no saved
// or default fallthrough. Used when an operator types credentials in.
func (m *Manager) DirectBackendWith(ip string, creds cxapi.Credentials) Backend {
	return &directBackend{m: m, ip: ip, creds: &creds}
}

// Capabilities reports what the switch hardware supports. Central-managed
// entries and unreachable switches degrade to the zero set rather than
// erroring; a dashboard panel with everything hidden beats a failed page.
func (m *Manager) Capabilities(ctx context.Context, sw inventory.Switch) cxapi.CapabilitySet {
	if m.Probe == nil {
		return cxapi.CapabilitySet{}
	}
	if sw.Kind != inventory.KindDirect {
		return m.Probe.Probe(ctx, nil)
	}
	s, err := m.Sessions.Authenticate(ctx, sw.IP)
	if err != nil {
		return m.Probe.Probe(ctx, nil)
	}
	return m.Probe.Probe(ctx, s)
}
