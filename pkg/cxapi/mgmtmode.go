package cxapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cxdash/cxdash/pkg/util"
)

// probeVLANID is deliberately outside the valid 1-4094 range. A locally
// managed switch rejects the write with 400 at validation, before anything
// touches the running configuration. A Central-managed switch blocks the
// write earlier with 410 (or 403), never reaching validation. The probe is
// therefore side-effect free on every switch.
const probeVLANID = 4095

// ManagementMode is the outcome of a write-path probe.
type ManagementMode struct {
	CentralManaged bool `json:"central_managed"`
	// Conclusive is false when the probe response matched neither the
	// Central nor the local signature; callers treat the switch as locally
	// managed but should not cache the answer.
	Conclusive bool   `json:"conclusive"`
	Reason     string `json:"reason"`
	Status     int    `json:"status_code,omitempty"`
}

// DetectManagementMode checks whether the switch's configuration is owned by
// Aruba Central by attempting a write that can never succeed.
func DetectManagementMode(ctx context.Context, s *Session) (ManagementMode, error) {
	client := s.Client()
	path := "/system/vlans/" + strconv.Itoa(probeVLANID)
	resp, err := client.Do(ctx, http.MethodPut, path,
		[]byte(`{"name":"__mode_probe__","admin":"up"}`), "application/json",
		client.Timeouts().Short)
	if err != nil {
		return ManagementMode{Reason: "probe failed: " + err.Error()},
			Classify(s.SwitchIP, s.Username, 0, "", err)
	}

	mode := ManagementMode{Status: resp.Status}
	switch resp.Status {
	case http.StatusGone, http.StatusForbidden:
		mode.CentralManaged = true
		mode.Conclusive = true
		mode.Reason = "write path blocked before validation (HTTP " + strconv.Itoa(resp.Status) + ")"
	case http.StatusBadRequest:
		mode.Conclusive = true
		mode.Reason = "write reached local validation, switch accepts direct configuration"
	default:
		mode.Reason = "unexpected probe response HTTP " + strconv.Itoa(resp.Status)
	}

	util.WithSwitch(s.SwitchIP).Debugf("management mode probe: central=%v conclusive=%v (%s)",
		mode.CentralManaged, mode.Conclusive, mode.Reason)
	return mode, nil
}
