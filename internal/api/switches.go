package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
	"github.com/cxdash/cxdash/pkg/validate"
)

func (s *Server) handleListSwitches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"switches": s.manager.Inventory.List(),
		"counts":   s.manager.Inventory.Counts(),
	})
}

type switchRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	IP       string `json:"ip"`
	Serial   string `json:"serial"`
	Username string `json:"username"`
	Password string `json:"password"`
	// SkipTest registers the switch without a connectivity check, for
	// pre-provisioning devices that are not racked yet.
	SkipTest bool `json:"skip_test"`
}

// handleAddSwitch validates, optionally tests connectivity with the supplied
// credentials, and registers the switch. A failed test rejects the add so
// the inventory never accumulates entries that never worked.
func (s *Server) handleAddSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "malformed JSON body",
		})
		return
	}

	sw := inventory.Switch{
		Name:     validate.SanitizeInput(req.Name, 64),
		Kind:     inventory.Kind(req.Kind),
		IP:       req.IP,
		Serial:   req.Serial,
		Username: req.Username,
		Password: req.Password,
	}

	var testResult any
	if sw.IP != "" || sw.Kind == inventory.KindDirect {
		if err := validate.IPAddress(sw.IP); err != nil {
			writeError(w, r, err)
			return
		}
		if !req.SkipTest {
			backend := s.manager.DirectBackend(sw.IP)
			if req.Username != "" {
				backend = s.manager.DirectBackendWith(sw.IP,
					cxapi.Credentials{Username: req.Username, Password: req.Password})
			}
			result, err := backend.TestConnection(r.Context())
			if err != nil {
				writeError(w, r, err)
				return
			}
			testResult = result
			if sw.Name == "" {
				sw.Name = result.Hostname
			}
		}
	}

	added, err := s.manager.Inventory.Add(sw)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error_type": "conflict", "error": err.Error(),
		})
		return
	}
	if testResult != nil {
		s.manager.Inventory.MarkStatus(added.IP, inventory.StatusOnline, "")
		added.Status = inventory.StatusOnline
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"switch":          added,
		"test_connection": testResult,
	})
}

func (s *Server) handleGetSwitch(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

func (s *Server) handleUpdateSwitch(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}

	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "malformed JSON body",
		})
		return
	}

	updated, _ := s.manager.Inventory.Update(sw.ID, func(x *inventory.Switch) {
		if req.Name != "" {
			x.Name = validate.SanitizeInput(req.Name, 64)
		}
		if req.Username != "" {
			x.Username = req.Username
			x.Password = req.Password
		}
	})
	writeJSON(w, http.StatusOK, updated)
}

// handleRemoveSwitch deletes the entry and drops any live session so the
// device's session slot is released promptly.
func (s *Server) handleRemoveSwitch(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}

	s.manager.Inventory.Remove(sw.ID)
	if sw.Kind == inventory.KindDirect {
		s.manager.Sessions.Cleanup(r.Context(), sw.IP, true)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "switch removed"})
}

// handleTestSwitch re-tests connectivity. A body with credentials tests
// exactly that pair; an empty body uses saved/default resolution.
func (s *Server) handleTestSwitch(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}

	var req switchRequest
	// The body is optional for a plain re-test.
	_ = json.NewDecoder(r.Body).Decode(&req)

	b, err := s.manager.Backend(sw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sw.Kind == inventory.KindDirect && req.Username != "" {
		b = s.manager.DirectBackendWith(sw.IP,
			cxapi.Credentials{Username: req.Username, Password: req.Password})
	}

	result, err := b.TestConnection(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessionCleanup force-logs-out the dashboard's session on the device.
func (s *Server) handleSessionCleanup(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}
	if sw.Kind != inventory.KindDirect {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "Central-managed switches hold no local sessions",
		})
		return
	}

	s.manager.Sessions.Cleanup(r.Context(), sw.IP, true)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "session cleanup completed for " + sw.IP,
	})
}

// handleBouncePort cycles a port down/up through Aruba Central. Only
// Central-managed switches expose a bounce action; the on-device REST API
// has no equivalent verb.
func (s *Server) handleBouncePort(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, r.URL.Path)
		return
	}
	if sw.Kind != inventory.KindCentral || s.manager.Central == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "port bounce is only available for Central-managed switches",
		})
		return
	}

	port := chi.URLParam(r, "port")
	if err := s.manager.Central.BouncePort(r.Context(), sw.Serial, port); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "bounce requested for port " + port,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"counts":          s.manager.Inventory.Counts(),
		"active_sessions": len(s.manager.Sessions.ActiveSessions()),
		"switch_total":    len(s.manager.Inventory.List()),
	})
}
