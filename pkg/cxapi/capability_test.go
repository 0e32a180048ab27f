package cxapi

import (
	"context"
	"testing"
	"time"

	"github.com/cxdash/cxdash/internal/testutil"
)

func TestCapabilityProbe_ChassisGroundTruth(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	sim.Platform = "9300-32D" // profile says no PoE
	sim.Chassis = map[string]any{
		"poe_power":      map[string]any{"available_power": 740},
		"power_supplies": map[string]any{"1": map[string]any{}, "2": map[string]any{}, "3": map[string]any{}},
		"fans":           map[string]any{"1": map[string]any{}, "2": map[string]any{}},
	}
	s := authSession(t, sim)

	set := NewCapabilityProbe().Probe(context.Background(), s)
	if !set.PoE {
		t.Error("chassis poe_power block must override the platform default")
	}
	if set.PSUCount != 3 || set.FanCount != 2 {
		t.Errorf("counts = %d PSUs / %d fans, want 3/2 from chassis", set.PSUCount, set.FanCount)
	}
	if set.Platform != "9300-32D" {
		t.Errorf("Platform = %q", set.Platform)
	}
}

func TestCapabilityProbe_PlatformDefaultsWhenChassisMissing(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	sim.Platform = "6300M-24P"
	sim.Chassis = nil // 404
	s := authSession(t, sim)

	set := NewCapabilityProbe().Probe(context.Background(), s)
	if !set.PoE {
		t.Error("6300 family defaults to PoE capable")
	}
	if set.PSUCount != 2 || set.FanCount != 3 {
		t.Errorf("counts = %d/%d, want 6300 profile 2/3", set.PSUCount, set.FanCount)
	}
	if !contains(set.Degraded, "chassis") {
		t.Errorf("chassis fallback should be flagged: %v", set.Degraded)
	}
}

func TestCapabilityProbe_NoPoEFamily(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	sim.Platform = "10000-48Y"
	s := authSession(t, sim)

	set := NewCapabilityProbe().Probe(context.Background(), s)
	if set.PoE {
		t.Error("10000 family is not PoE capable")
	}
	if set.PSUCount != 4 || set.FanCount != 8 {
		t.Errorf("counts = %d/%d, want 10000 profile 4/8", set.PSUCount, set.FanCount)
	}
}

func TestCapabilityProbe_PortAndLLDP(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	sim.PortCount = 48
	s := authSession(t, sim)

	set := NewCapabilityProbe().Probe(context.Background(), s)
	if set.PortCount != 48 {
		t.Errorf("PortCount = %d, want 48", set.PortCount)
	}
	if !set.LLDP {
		t.Error("LLDP probe answered 200, capability should be true")
	}
	if set.CPUStats {
		t.Error("CPU statistics are never advertised")
	}
}

func TestCapabilityProbe_LLDPUnsupported(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	sim.LLDPStatus = 404
	s := authSession(t, sim)

	set := NewCapabilityProbe().Probe(context.Background(), s)
	if set.LLDP {
		t.Error("404 from the LLDP probe means unsupported")
	}
}

func TestCapabilityProbe_NilSession(t *testing.T) {
	set := NewCapabilityProbe().Probe(context.Background(), nil)
	if set.PoE || set.LLDP || set.CPUStats || set.PortCount != 0 {
		t.Errorf("nil session must yield the zero set: %+v", set)
	}
}

func TestCapabilityProbe_CachesForTTL(t *testing.T) {
	sim := testutil.NewSwitchSim()
	defer sim.Close()
	s := authSession(t, sim)

	p := NewCapabilityProbe()
	now := time.Now()
	p.SetClock(func() time.Time { return now })

	p.Probe(context.Background(), s)
	chassisCalls := sim.ChassisCalls

	now = now.Add(59 * time.Second)
	p.Probe(context.Background(), s)
	if sim.ChassisCalls != chassisCalls {
		t.Errorf("probe within TTL re-queried the device (%d -> %d)", chassisCalls, sim.ChassisCalls)
	}

	now = now.Add(2 * time.Second) // past 60s
	p.Probe(context.Background(), s)
	if sim.ChassisCalls != chassisCalls+1 {
		t.Errorf("probe after TTL should re-query exactly once (%d -> %d)", chassisCalls, sim.ChassisCalls)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
