// Package api exposes the dashboard's REST surface: switch inventory CRUD,
// connectivity tests, VLAN and interface views, capability reports, the
// device API audit log, and backup management.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cxdash/cxdash/pkg/audit"
	"github.com/cxdash/cxdash/pkg/backup"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
	"github.com/cxdash/cxdash/pkg/manager"
	"github.com/cxdash/cxdash/pkg/util"
	"github.com/cxdash/cxdash/pkg/validate"
)

// Server wires the handlers to their dependencies. Construct with NewServer
// and mount via Router.
type Server struct {
	manager *manager.Manager
	history *audit.History
	backups *backup.Store
	router  chi.Router
}

// NewServer builds the router. backups may be nil to disable the backup
// endpoints.
func NewServer(m *manager.Manager, history *audit.History, backups *backup.Store) *Server {
	s := &Server{manager: m, history: history, backups: backups}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/switches", func(r chi.Router) {
			r.Get("/", s.handleListSwitches)
			r.Post("/", s.handleAddSwitch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSwitch)
				r.Put("/", s.handleUpdateSwitch)
				r.Delete("/", s.handleRemoveSwitch)
				r.Post("/test", s.handleTestSwitch)
				r.Get("/overview", s.handleOverview)
				r.Get("/capabilities", s.handleCapabilities)
				r.Get("/interfaces", s.handleListInterfaces)
				r.Post("/sessions/cleanup", s.handleSessionCleanup)
				r.Post("/bounce/{port}", s.handleBouncePort)
				r.Route("/vlans", func(r chi.Router) {
					r.Get("/", s.handleListVLANs)
					r.Post("/", s.handleCreateVLAN)
					r.Post("/bulk", s.handleBulkVLANs)
					r.Put("/{vlanID}", s.handleUpdateVLAN)
					r.Delete("/{vlanID}", s.handleDeleteVLAN)
				})
			})
		})

		r.Route("/api-log", func(r chi.Router) {
			r.Get("/", s.handleAPILog)
			r.Get("/stats", s.handleAPILogStats)
			r.Delete("/", s.handleAPILogClear)
		})

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)

		if s.backups != nil {
			r.Route("/backups", func(r chi.Router) {
				r.Get("/", s.handleListBackups)
				r.Post("/cleanup", s.handleBackupCleanup)
				r.Get("/{id}", s.handleGetBackup)
				r.Delete("/{id}", s.handleDeleteBackup)
			})
		}
	})

	s.router = r
	return s
}

// Router returns the mounted handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warnf("api: encoding response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// classified payload the frontend renders: error_type, error, suggestion,
// switch_ip.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_type": "validation_error",
			"error":      verr.Error(),
			"errors":     verr.Errors,
		})
		return
	}

	ce := cxapi.AsError(err, "")
	writeJSON(w, statusForKind(ce.Kind), ce)
}

func statusForKind(kind cxapi.Kind) int {
	switch kind {
	case cxapi.KindInvalidCredentials:
		return http.StatusUnauthorized
	case cxapi.KindPermissionDenied, cxapi.KindCentralManaged:
		return http.StatusForbidden
	case cxapi.KindConnectionTimeout:
		return http.StatusGatewayTimeout
	case cxapi.KindSessionLimit:
		return http.StatusTooManyRequests
	case cxapi.KindAPIUnavailable:
		return http.StatusBadGateway
	case cxapi.KindVLANOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// switchFromRequest resolves the {id} path segment, accepting either an
// inventory ID or a raw IP for convenience.
func (s *Server) switchFromRequest(r *http.Request) (inventory.Switch, bool) {
	id := chi.URLParam(r, "id")
	if sw, ok := s.manager.Inventory.Get(id); ok {
		return sw, true
	}
	return s.manager.Inventory.GetByIP(id)
}

func notFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error_type": "not_found",
		"error":      "no switch with id or IP " + id,
	})
}
