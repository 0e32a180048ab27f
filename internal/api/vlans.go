package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cxdash/cxdash/pkg/manager"
	"github.com/cxdash/cxdash/pkg/validate"
)

func (s *Server) backendFor(w http.ResponseWriter, r *http.Request) (manager.Backend, string, bool) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return nil, "", false
	}
	b, err := s.manager.Backend(sw)
	if err != nil {
		writeError(w, r, err)
		return nil, "", false
	}
	target := sw.IP
	if target == "" {
		target = sw.Serial
	}
	return b, target, true
}

func (s *Server) handleListVLANs(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	vlans, err := b.ListVLANs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vlans": vlans, "count": len(vlans)})
}

type vlanRequest struct {
	VLANID   int    `json:"vlan_id"`
	VLANName string `json:"vlan_name"`
}

func (s *Server) handleCreateVLAN(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	var req vlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "malformed JSON body",
		})
		return
	}

	if err := b.CreateVLAN(r.Context(), req.VLANID, req.VLANName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "VLAN created", "vlan_id": req.VLANID, "vlan_name": req.VLANName,
	})
}

func (s *Server) handleUpdateVLAN(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	vlanID, err := strconv.Atoi(chi.URLParam(r, "vlanID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "VLAN ID must be numeric",
		})
		return
	}
	var req vlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "malformed JSON body",
		})
		return
	}

	if err := b.UpdateVLAN(r.Context(), vlanID, req.VLANName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "VLAN updated", "vlan_id": vlanID, "vlan_name": req.VLANName,
	})
}

func (s *Server) handleDeleteVLAN(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	vlanID, err := strconv.Atoi(chi.URLParam(r, "vlanID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "VLAN ID must be numeric",
		})
		return
	}

	if err := b.DeleteVLAN(r.Context(), vlanID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "VLAN deleted", "vlan_id": vlanID})
}

// handleBulkVLANs validates the batch as a unit, then applies entry by
// entry, returning per-entry outcomes.
func (s *Server) handleBulkVLANs(w http.ResponseWriter, r *http.Request) {
	b, target, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Operations []validate.VLANOp `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Operations) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "body must carry a non-empty operations array",
		})
		return
	}

	result, problems := manager.ApplyBulk(r.Context(), b, target, req.Operations)
	if problems != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_type": "validation_error",
			"error":      "bulk request rejected, no operations were applied",
			"problems":   problems,
		})
		return
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	ports, err := b.ListInterfaces(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interfaces": ports, "count": len(ports)})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	b, _, ok := s.backendFor(w, r)
	if !ok {
		return
	}
	ov, err := b.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	sw, ok := s.switchFromRequest(r)
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Capabilities(r.Context(), sw))
}
