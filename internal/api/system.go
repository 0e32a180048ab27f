package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cxdash/cxdash/pkg/audit"
)

func (s *Server) handleAPILog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		SwitchIP:    q.Get("switch_ip"),
		Category:    q.Get("category"),
		FailureOnly: q.Get("failures") == "true",
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	events := s.history.Recent(filter)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleAPILogStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Statistics())
}

func (s *Server) handleAPILogClear(w http.ResponseWriter, r *http.Request) {
	n := s.history.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"message": "api log cleared", "removed": n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.manager.Inventory.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="cxdash-inventory.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": "reading import body failed",
		})
		return
	}
	added, err := s.manager.Inventory.Import(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_type": "bad_request", "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "inventory imported", "added": added})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.backups.List(r.URL.Query().Get("switch_ip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": snaps, "count": len(snaps)})
}

func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backups.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error_type": "not_found", "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.backups.Delete(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error_type": "not_found", "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "backup deleted"})
}

func (s *Server) handleBackupCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keep int `json:"keep"`
	}
	req.Keep = 10
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	removed, err := s.backups.Cleanup(req.Keep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "backup cleanup completed", "removed": removed})
}
