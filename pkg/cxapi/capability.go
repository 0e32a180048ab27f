package cxapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cxdash/cxdash/pkg/cache"
	"github.com/cxdash/cxdash/pkg/util"
)

// CapabilitySet describes what hardware features a switch exposes. Fields
// degrade independently: a failed sub-probe falls back to the platform
// default for that field and is listed in Degraded, while the rest of the
// set stays accurate.
type CapabilitySet struct {
	Platform   string    `json:"platform"`
	PoE        bool      `json:"poe"`
	LLDP       bool      `json:"lldp"`
	CPUStats   bool      `json:"cpu_stats"`
	PortCount  int       `json:"port_count"`
	PSUCount   int       `json:"psu_count"`
	FanCount   int       `json:"fan_count"`
	DetectedAt time.Time `json:"detected_at"`
	Degraded   []string  `json:"degraded,omitempty"`
}

// platformProfile is the per-family default used when a live probe cannot
// answer. Keyed by model-number substring of platform_name.
type platformProfile struct {
	poe  bool
	psus int
	fans int
}

var platformProfiles = []struct {
	marker  string
	profile platformProfile
}{
	{"6200", platformProfile{poe: true, psus: 1, fans: 2}},
	{"6300", platformProfile{poe: true, psus: 2, fans: 3}},
	{"9300", platformProfile{poe: false, psus: 2, fans: 6}},
	{"10000", platformProfile{poe: false, psus: 4, fans: 8}},
}

func profileFor(platform string) (platformProfile, bool) {
	for _, p := range platformProfiles {
		if strings.Contains(platform, p.marker) {
			return p.profile, true
		}
	}
	return platformProfile{}, false
}

// CapabilityProbe detects switch capabilities and caches them briefly so
// repeated dashboard renders do not hammer the device.
type CapabilityProbe struct {
	cache *cache.Cache[CapabilitySet]
	now   func() time.Time
}

// NewCapabilityProbe creates a probe with a dedicated capability cache.
func NewCapabilityProbe() *CapabilityProbe {
	return &CapabilityProbe{
		cache: cache.New[CapabilitySet](cache.TTLCapability),
		now:   time.Now,
	}
}

// SetClock overrides the time source for the probe and its cache. Tests only.
func (p *CapabilityProbe) SetClock(now func() time.Time) {
	p.now = now
	p.cache.SetClock(now)
}

// SetTTL replaces the default lifetime of cached capability sets.
func (p *CapabilityProbe) SetTTL(ttl time.Duration) {
	p.cache.SetDefaultTTL(ttl)
}

// Invalidate drops the cached set for one switch.
func (p *CapabilityProbe) Invalidate(switchIP string) {
	p.cache.Invalidate(cache.Key(switchIP, "capabilities"))
}

// Probe returns the capability set for the switch behind the session. A nil
// session yields the zero set: every capability false, nothing cached. Probe
// itself never fails; individual sub-probe failures degrade their field.
func (p *CapabilityProbe) Probe(ctx context.Context, s *Session) CapabilitySet {
	if s == nil {
		return CapabilitySet{DetectedAt: p.now()}
	}

	set, _ := p.cache.GetOrSet(cache.Key(s.SwitchIP, "capabilities"), 0,
		func() (CapabilitySet, error) {
			return p.detect(ctx, s), nil
		})
	return set
}

func (p *CapabilityProbe) detect(ctx context.Context, s *Session) CapabilitySet {
	client := s.Client()
	set := CapabilitySet{DetectedAt: p.now()}

	// Platform name anchors the default profile.
	if resp, err := client.Get(ctx, "/system", client.Timeouts().Medium); err == nil && resp.Status == http.StatusOK {
		var sys struct {
			PlatformName string `json:"platform_name"`
		}
		if json.Unmarshal(resp.Body, &sys) == nil {
			set.Platform = sys.PlatformName
		}
	}
	profile, known := profileFor(set.Platform)
	if set.Platform == "" {
		set.Degraded = append(set.Degraded, "platform")
	} else if !known {
		util.WithSwitch(s.SwitchIP).Debugf("no capability profile for platform %q", set.Platform)
	}
	set.PoE = profile.poe
	set.PSUCount = profile.psus
	set.FanCount = profile.fans

	p.probeChassis(ctx, s, &set)
	p.probeLLDP(ctx, s, &set)
	p.probePorts(ctx, s, &set)

	// CPU statistics endpoints vary too much across firmware lines to
	// trust; the dashboard hides the panel rather than show bad numbers.
	set.CPUStats = false

	util.WithSwitch(s.SwitchIP).Debugf("capabilities: platform=%s poe=%v lldp=%v ports=%d degraded=%v",
		set.Platform, set.PoE, set.LLDP, set.PortCount, set.Degraded)
	return set
}

// probeChassis reads the chassis subsystem document. When it answers, its
// contents are ground truth and override the platform defaults: a poe_power
// block means PoE hardware is present, and the power_supplies/fans maps give
// exact counts.
func (p *CapabilityProbe) probeChassis(ctx context.Context, s *Session, set *CapabilitySet) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system/subsystems/chassis,1", client.Timeouts().Short)
	if err != nil || resp.Status != http.StatusOK {
		set.Degraded = append(set.Degraded, "chassis")
		return
	}

	var chassis struct {
		PoEPower      json.RawMessage            `json:"poe_power"`
		PowerSupplies map[string]json.RawMessage `json:"power_supplies"`
		Fans          map[string]json.RawMessage `json:"fans"`
	}
	if err := json.Unmarshal(resp.Body, &chassis); err != nil {
		set.Degraded = append(set.Degraded, "chassis")
		return
	}

	set.PoE = len(chassis.PoEPower) > 0 && string(chassis.PoEPower) != "null"
	if len(chassis.PowerSupplies) > 0 {
		set.PSUCount = len(chassis.PowerSupplies)
	}
	if len(chassis.Fans) > 0 {
		set.FanCount = len(chassis.Fans)
	}
}

func (p *CapabilityProbe) probeLLDP(ctx context.Context, s *Session, set *CapabilitySet) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system/interfaces/%2A/lldp_neighbors", client.Timeouts().Short)
	if err != nil {
		set.Degraded = append(set.Degraded, "lldp")
		return
	}
	set.LLDP = resp.Status == http.StatusOK
}

func (p *CapabilityProbe) probePorts(ctx context.Context, s *Session, set *CapabilitySet) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system/interfaces", client.Timeouts().Medium)
	if err != nil || resp.Status != http.StatusOK {
		set.Degraded = append(set.Degraded, "ports")
		return
	}

	var ifaces map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &ifaces); err != nil {
		set.Degraded = append(set.Degraded, "ports")
		return
	}
	count := 0
	for name := range ifaces {
		// Physical ports are member/slot/port names; skip lag and vlan
		// interfaces.
		if strings.Contains(name, "/") {
			count++
		}
	}
	set.PortCount = count
}
