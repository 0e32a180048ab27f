package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/cxdash/cxdash/pkg/cache"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/util"
	"github.com/cxdash/cxdash/pkg/validate"
)

// centralBackend operates a switch through the Central cloud API. Central
// owns the configuration, so there is no session, capability probe, or
// backup flow here; Central keeps its own history.
type centralBackend struct {
	m      *Manager
	serial string
}

func (b *centralBackend) TestConnection(ctx context.Context) (*ConnectionResult, error) {
	dev, err := b.m.Central.DeviceBySerial(ctx, b.serial)
	if err != nil {
		return nil, err
	}
	return &ConnectionResult{
		Reachable: strings.EqualFold(dev.Status, "up"),
		Hostname:  dev.Name,
		Platform:  dev.Model,
		Mode: cxapi.ManagementMode{
			CentralManaged: true,
			Conclusive:     true,
			Reason:         "switch is bound through Aruba Central",
		},
	}, nil
}

func (b *centralBackend) Overview(ctx context.Context) (*Overview, error) {
	return b.m.overviews.GetOrSet(cache.Key(b.serial, "overview"), 0,
		func() (*Overview, error) {
			dev, err := b.m.Central.DeviceBySerial(ctx, b.serial)
			if err != nil {
				return nil, err
			}
			ov := &Overview{
				Hostname: dev.Name,
				Platform: dev.Model,
			}
			if vlans, err := b.ListVLANs(ctx); err == nil {
				ov.VLANCount = len(vlans)
			}
			return ov, nil
		})
}

func (b *centralBackend) ListVLANs(ctx context.Context) ([]VLANInfo, error) {
	return b.m.vlans.GetOrSet(cache.Key(b.serial, "vlans"), 0,
		func() ([]VLANInfo, error) {
			vlans, err := b.m.Central.ListVLANs(ctx, b.serial)
			if err != nil {
				return nil, err
			}
			out := make([]VLANInfo, 0, len(vlans))
			for _, v := range vlans {
				out = append(out, VLANInfo{ID: v.ID, Name: v.Name, Admin: strings.ToLower(v.Status)})
			}
			return out, nil
		})
}

func (b *centralBackend) CreateVLAN(ctx context.Context, id int, name string) error {
	if err := validate.VLANID(id); err != nil {
		return err
	}
	if err := validate.VLANName(name); err != nil {
		return err
	}
	if err := b.m.Central.CreateVLAN(ctx, b.serial, id, name); err != nil {
		return err
	}
	b.m.invalidateSwitch(b.serial)
	util.Infof("central: created VLAN %d (%s) on %s", id, name, b.serial)
	return nil
}

// UpdateVLAN is not exposed by the Central configuration endpoints this
// client covers; renames happen in Central itself.
func (b *centralBackend) UpdateVLAN(ctx context.Context, id int, name string) error {
	return fmt.Errorf("renaming VLANs on Central-managed switch %s is only available in Aruba Central", b.serial)
}

func (b *centralBackend) DeleteVLAN(ctx context.Context, id int) error {
	if err := validate.VLANID(id); err != nil {
		return err
	}
	if err := b.m.Central.DeleteVLAN(ctx, b.serial, id); err != nil {
		return err
	}
	b.m.invalidateSwitch(b.serial)
	util.Infof("central: deleted VLAN %d on %s", id, b.serial)
	return nil
}

// ListInterfaces is not served through the Central monitoring surface this
// client covers; the dashboard points operators at Central itself.
func (b *centralBackend) ListInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	return nil, fmt.Errorf("interface listing for Central-managed switch %s is only available in Aruba Central", b.serial)
}
