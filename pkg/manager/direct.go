package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cxdash/cxdash/pkg/cache"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
	"github.com/cxdash/cxdash/pkg/util"
	"github.com/cxdash/cxdash/pkg/validate"
)

// fallbackWorkers bounds the per-port fetch pool used when a device rejects
// the bulk interface query. Eight keeps a 48-port listing fast without
// flooding the embedded HTTP server.
const fallbackWorkers = 8

// directBackend operates one switch over its on-device REST API.
type directBackend struct {
	m     *Manager
	ip    string
	creds *cxapi.Credentials
}

// WithCredentials returns a copy of the backend that authenticates with
// exactly the given pair. Used by the add-switch flow before anything is
// saved.
func (b *directBackend) WithCredentials(creds cxapi.Credentials) *directBackend {
	return &directBackend{m: b.m, ip: b.ip, creds: &creds}
}

func (b *directBackend) session(ctx context.Context) (*cxapi.Session, error) {
	if b.creds != nil {
		return b.m.Sessions.AuthenticateWith(ctx, b.ip, *b.creds)
	}
	return b.m.Sessions.Authenticate(ctx, b.ip)
}

// systemInfo is the subset of /system the dashboard shows.
type systemInfo struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform_name"`
	Firmware string `json:"software_version"`
}

func (b *directBackend) fetchSystem(ctx context.Context, s *cxapi.Session) (systemInfo, error) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system", client.Timeouts().Medium)
	if err != nil {
		return systemInfo{}, cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	if resp.Status != http.StatusOK {
		return systemInfo{}, cxapi.Classify(b.ip, s.Username, resp.Status, string(resp.Body), nil)
	}
	var info systemInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return systemInfo{}, cxapi.NewUnknownSwitchError(b.ip, resp.Status, "malformed system document")
	}
	return info, nil
}

// TestConnection authenticates, reads the system document, and
// opportunistically detects the management mode and capabilities. The
// inventory status for the switch is updated either way. On an explicit
// credential win the pair is saved for future sessions.
func (b *directBackend) TestConnection(ctx context.Context) (*ConnectionResult, error) {
	s, err := b.session(ctx)
	if err != nil {
		b.markFailure(err)
		return nil, err
	}

	info, err := b.fetchSystem(ctx, s)
	if err != nil {
		b.markFailure(err)
		return nil, err
	}

	result := &ConnectionResult{
		Reachable: true,
		Hostname:  info.Hostname,
		Platform:  info.Platform,
		Firmware:  info.Firmware,
		Username:  s.Username,
		Source:    s.Source,
	}

	// Both probes are best-effort: a failure leaves their zero values and
	// never fails the connectivity test itself.
	if mode, err := cxapi.DetectManagementMode(ctx, s); err == nil {
		result.Mode = mode
	}
	if b.m.Probe != nil {
		result.Capabilities = b.m.Probe.Probe(ctx, s)
	}

	if b.m.Inventory != nil {
		b.m.Inventory.MarkStatus(b.ip, inventory.StatusOnline, "")
		b.m.Inventory.MarkIdentity(b.ip, info.Platform, info.Firmware)
		if s.Source == cxapi.SourceExplicit && b.creds != nil {
			b.m.Inventory.SaveCredentials(b.ip, b.creds.Username, b.creds.Password)
		}
	}
	return result, nil
}

func (b *directBackend) markFailure(err error) {
	if b.m.Inventory == nil {
		return
	}
	status := inventory.StatusError
	if cxapi.IsKind(err, cxapi.KindConnectionTimeout) {
		status = inventory.StatusOffline
	}
	b.m.Inventory.MarkStatus(b.ip, status, err.Error())
}

// ListVLANs returns the switch's VLANs, served from cache for a few minutes.
func (b *directBackend) ListVLANs(ctx context.Context) ([]VLANInfo, error) {
	return b.m.vlans.GetOrSet(cache.Key(b.ip, "vlans"), 0,
		func() ([]VLANInfo, error) {
			s, err := b.session(ctx)
			if err != nil {
				return nil, err
			}
			return b.fetchVLANs(ctx, s)
		})
}

func (b *directBackend) fetchVLANs(ctx context.Context, s *cxapi.Session) ([]VLANInfo, error) {
	client := s.Client()

	// Newer firmware answers a depth query with full documents in one round
	// trip; older firmware only serves the URI map.
	resp, err := client.Get(ctx, "/system/vlans?depth=2&attributes=name,admin", client.Timeouts().Medium)
	if err != nil {
		return nil, cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	if resp.Status != http.StatusOK {
		return nil, cxapi.Classify(b.ip, s.Username, resp.Status, string(resp.Body), nil)
	}

	var full map[string]struct {
		Name  string `json:"name"`
		Admin string `json:"admin"`
	}
	if err := json.Unmarshal(resp.Body, &full); err == nil && documentsNotURIs(resp.Body) {
		out := make([]VLANInfo, 0, len(full))
		for rawID, doc := range full {
			id, err := strconv.Atoi(rawID)
			if err != nil {
				continue
			}
			out = append(out, VLANInfo{ID: id, Name: doc.Name, Admin: doc.Admin})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}

	// URI map fallback: fetch each VLAN document individually.
	var uris map[string]string
	if err := json.Unmarshal(resp.Body, &uris); err != nil {
		return nil, cxapi.NewUnknownSwitchError(b.ip, resp.Status, "malformed vlan listing")
	}
	out := make([]VLANInfo, 0, len(uris))
	for rawID := range uris {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			continue
		}
		info := VLANInfo{ID: id}
		detail, err := client.Get(ctx, "/system/vlans/"+rawID, client.Timeouts().Short)
		if err == nil && detail.Status == http.StatusOK {
			var doc struct {
				Name  string `json:"name"`
				Admin string `json:"admin"`
			}
			if json.Unmarshal(detail.Body, &doc) == nil {
				info.Name = doc.Name
				info.Admin = doc.Admin
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// documentsNotURIs distinguishes a depth-query response (objects) from a
// plain URI map (strings) without committing to either schema up front.
func documentsNotURIs(body []byte) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	for _, raw := range probe {
		trimmed := strings.TrimSpace(string(raw))
		return strings.HasPrefix(trimmed, "{")
	}
	return false
}

// CreateVLAN validates, checks for duplicates, snapshots the current VLAN
// table, then writes. The caches for this switch are dropped afterwards.
func (b *directBackend) CreateVLAN(ctx context.Context, id int, name string) error {
	if err := validate.VLANID(id); err != nil {
		return err
	}
	if err := validate.VLANName(name); err != nil {
		return err
	}

	s, err := b.session(ctx)
	if err != nil {
		return err
	}

	existing, err := b.fetchVLANs(ctx, s)
	if err != nil {
		return err
	}
	for _, v := range existing {
		if v.ID == id {
			return cxapi.NewVLANOperationError(b.ip, "create", id,
				fmt.Sprintf("VLAN %d already exists (%s)", id, v.Name))
		}
	}
	b.snapshotVLANs(existing, fmt.Sprintf("before creating VLAN %d", id))

	body, _ := json.Marshal(map[string]string{"name": name, "admin": "up"})
	resp, err := s.Client().PutJSON(ctx, "/system/vlans/"+strconv.Itoa(id), body)
	if err != nil {
		return cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusCreated {
		return b.vlanWriteError("create", id, resp)
	}

	b.m.invalidateSwitch(b.ip)
	util.WithSwitch(b.ip).Infof("created VLAN %d (%s)", id, name)
	return nil
}

// UpdateVLAN renames an existing VLAN.
func (b *directBackend) UpdateVLAN(ctx context.Context, id int, name string) error {
	if err := validate.VLANID(id); err != nil {
		return err
	}
	if err := validate.VLANName(name); err != nil {
		return err
	}

	s, err := b.session(ctx)
	if err != nil {
		return err
	}

	existing, err := b.fetchVLANs(ctx, s)
	if err != nil {
		return err
	}
	found := false
	for _, v := range existing {
		if v.ID == id {
			found = true
			break
		}
	}
	if !found {
		return cxapi.NewVLANOperationError(b.ip, "modify", id, fmt.Sprintf("VLAN %d does not exist", id))
	}
	b.snapshotVLANs(existing, fmt.Sprintf("before renaming VLAN %d", id))

	body, _ := json.Marshal(map[string]string{"name": name, "admin": "up"})
	resp, err := s.Client().PutJSON(ctx, "/system/vlans/"+strconv.Itoa(id), body)
	if err != nil {
		return cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusCreated {
		return b.vlanWriteError("modify", id, resp)
	}

	b.m.invalidateSwitch(b.ip)
	util.WithSwitch(b.ip).Infof("renamed VLAN %d to %s", id, name)
	return nil
}

// DeleteVLAN refuses reserved VLANs before any network traffic, snapshots,
// deletes, and invalidates.
func (b *directBackend) DeleteVLAN(ctx context.Context, id int) error {
	if validate.ReservedVLANs[id] {
		return cxapi.NewVLANOperationError(b.ip, "delete", id,
			fmt.Sprintf("VLAN %d is reserved and cannot be deleted", id))
	}
	if err := validate.VLANID(id); err != nil {
		return err
	}

	s, err := b.session(ctx)
	if err != nil {
		return err
	}

	if existing, err := b.fetchVLANs(ctx, s); err == nil {
		b.snapshotVLANs(existing, fmt.Sprintf("before deleting VLAN %d", id))
	}

	resp, err := s.Client().Delete(ctx, "/system/vlans/"+strconv.Itoa(id))
	if err != nil {
		return cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	switch resp.Status {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusNotFound:
		return cxapi.NewVLANOperationError(b.ip, "delete", id, fmt.Sprintf("VLAN %d does not exist", id))
	default:
		return b.vlanWriteError("delete", id, resp)
	}

	b.m.invalidateSwitch(b.ip)
	util.WithSwitch(b.ip).Infof("deleted VLAN %d", id)
	return nil
}

// vlanWriteError keeps Central/permission classifications intact and folds
// everything else into the VLAN operation kind.
func (b *directBackend) vlanWriteError(op string, id int, resp *cxapi.Response) error {
	classified := cxapi.Classify(b.ip, "", resp.Status, string(resp.Body), nil)
	if !cxapi.IsKind(classified, cxapi.KindUnknownSwitch) {
		return classified
	}
	return cxapi.NewVLANOperationError(b.ip, op, id,
		fmt.Sprintf("HTTP %d: %s", resp.Status, util.Truncate(string(resp.Body), 200)))
}

func (b *directBackend) snapshotVLANs(vlans []VLANInfo, description string) {
	if b.m.Backups == nil {
		return
	}
	if _, err := b.m.Backups.Save(b.ip, "vlans", description, vlans); err != nil {
		util.WithSwitch(b.ip).Warnf("snapshot failed (continuing): %v", err)
	}
}

// ListInterfaces returns the physical ports, cached. The bulk attribute
// query is one round trip; firmware that rejects it gets the per-port
// fallback through a bounded worker pool.
func (b *directBackend) ListInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	return b.m.interfaces.GetOrSet(cache.Key(b.ip, "interfaces"), 0,
		func() ([]InterfaceInfo, error) {
			s, err := b.session(ctx)
			if err != nil {
				return nil, err
			}
			return b.fetchInterfaces(ctx, s)
		})
}

type interfaceDoc struct {
	Name        string `json:"name"`
	AdminState  string `json:"admin_state"`
	LinkState   string `json:"link_state"`
	LinkSpeed   int64  `json:"link_speed"`
	Description string `json:"description"`
}

func (d interfaceDoc) toInfo(name string) InterfaceInfo {
	if d.Name != "" {
		name = d.Name
	}
	return InterfaceInfo{
		Name:        name,
		AdminState:  d.AdminState,
		LinkState:   d.LinkState,
		LinkSpeed:   d.LinkSpeed,
		Description: d.Description,
	}
}

func (b *directBackend) fetchInterfaces(ctx context.Context, s *cxapi.Session) ([]InterfaceInfo, error) {
	client := s.Client()

	resp, err := client.Get(ctx,
		"/system/interfaces?depth=2&attributes=name,admin_state,link_state,link_speed,description",
		client.Timeouts().Long)
	if err != nil {
		return nil, cxapi.Classify(b.ip, s.Username, 0, "", err)
	}

	if resp.Status == http.StatusOK && documentsNotURIs(resp.Body) {
		var docs map[string]interfaceDoc
		if err := json.Unmarshal(resp.Body, &docs); err == nil {
			out := make([]InterfaceInfo, 0, len(docs))
			for name, doc := range docs {
				if !isPhysicalPort(name) {
					continue
				}
				out = append(out, doc.toInfo(name))
			}
			sortPorts(out)
			return out, nil
		}
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusBadRequest {
		return nil, cxapi.Classify(b.ip, s.Username, resp.Status, string(resp.Body), nil)
	}

	return b.fetchInterfacesFallback(ctx, s)
}

// fetchInterfacesFallback lists the interface URIs and fetches each port
// document with a bounded pool. Individual port failures degrade to a bare
// name instead of failing the listing.
func (b *directBackend) fetchInterfacesFallback(ctx context.Context, s *cxapi.Session) ([]InterfaceInfo, error) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system/interfaces", client.Timeouts().Medium)
	if err != nil {
		return nil, cxapi.Classify(b.ip, s.Username, 0, "", err)
	}
	if resp.Status != http.StatusOK {
		return nil, cxapi.Classify(b.ip, s.Username, resp.Status, string(resp.Body), nil)
	}
	var uris map[string]string
	if err := json.Unmarshal(resp.Body, &uris); err != nil {
		return nil, cxapi.NewUnknownSwitchError(b.ip, resp.Status, "malformed interface listing")
	}

	names := make([]string, 0, len(uris))
	for name := range uris {
		if isPhysicalPort(name) {
			names = append(names, name)
		}
	}

	out := make([]InterfaceInfo, len(names))
	sem := make(chan struct{}, fallbackWorkers)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()

			out[i] = InterfaceInfo{Name: name}
			detail, err := client.Get(ctx, "/system/interfaces/"+url.PathEscape(name), client.Timeouts().Short)
			if err != nil || detail.Status != http.StatusOK {
				return
			}
			var doc interfaceDoc
			if json.Unmarshal(detail.Body, &doc) == nil {
				out[i] = doc.toInfo(name)
			}
		}(i, name)
	}
	wg.Wait()

	sortPorts(out)
	return out, nil
}

func isPhysicalPort(name string) bool {
	return strings.Contains(name, "/")
}

// sortPorts orders member/slot/port names numerically so 1/1/10 follows
// 1/1/9.
func sortPorts(ports []InterfaceInfo) {
	sort.Slice(ports, func(i, j int) bool {
		return comparePortNames(ports[i].Name, ports[j].Name) < 0
	})
}

func comparePortNames(a, b string) int {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
			continue
		}
		if ai != bi {
			return ai - bi
		}
	}
	return len(as) - len(bs)
}

// chassisDoc is the subset of the chassis subsystem used for health.
type chassisDoc struct {
	PoEPower struct {
		AvailablePower float64 `json:"available_power"`
		DrawnPower     float64 `json:"drawn_power"`
	} `json:"poe_power"`
	PowerSupplies map[string]struct {
		Status string `json:"status"`
	} `json:"power_supplies"`
	Fans map[string]struct {
		Status string `json:"status"`
	} `json:"fans"`
}

// Overview builds the summary panel, cached briefly. Health blocks degrade
// independently: a failed chassis read leaves them empty while the system
// facts still render.
func (b *directBackend) Overview(ctx context.Context) (*Overview, error) {
	return b.m.overviews.GetOrSet(cache.Key(b.ip, "overview"), 0,
		func() (*Overview, error) {
			s, err := b.session(ctx)
			if err != nil {
				return nil, err
			}

			info, err := b.fetchSystem(ctx, s)
			if err != nil {
				return nil, err
			}
			ov := &Overview{
				Hostname: info.Hostname,
				Platform: info.Platform,
				Firmware: info.Firmware,
			}

			if vlans, err := b.fetchVLANs(ctx, s); err == nil {
				ov.VLANCount = len(vlans)
			}
			if b.m.Probe != nil {
				ov.Capabilities = b.m.Probe.Probe(ctx, s)
				ov.PortCount = ov.Capabilities.PortCount
			}
			b.fillChassisHealth(ctx, s, ov)
			return ov, nil
		})
}

func (b *directBackend) fillChassisHealth(ctx context.Context, s *cxapi.Session, ov *Overview) {
	client := s.Client()
	resp, err := client.Get(ctx, "/system/subsystems/chassis,1", client.Timeouts().Short)
	if err != nil || resp.Status != http.StatusOK {
		return
	}
	var doc chassisDoc
	if json.Unmarshal(resp.Body, &doc) != nil {
		return
	}

	for name, psu := range doc.PowerSupplies {
		ov.PSUs = append(ov.PSUs, ComponentHealth{Name: name, Status: psu.Status})
	}
	for name, fan := range doc.Fans {
		ov.Fans = append(ov.Fans, ComponentHealth{Name: name, Status: fan.Status})
	}
	sort.Slice(ov.PSUs, func(i, j int) bool { return ov.PSUs[i].Name < ov.PSUs[j].Name })
	sort.Slice(ov.Fans, func(i, j int) bool { return ov.Fans[i].Name < ov.Fans[j].Name })

	if ov.Capabilities.PoE && doc.PoEPower.AvailablePower > 0 {
		ov.PoE = &PoEStatus{
			AvailableWatts: doc.PoEPower.AvailablePower,
			DrawnWatts:     doc.PoEPower.DrawnPower,
		}
	}
}
