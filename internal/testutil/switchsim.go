// Package testutil provides an in-process AOS-CX switch simulator for tests.
// It models the parts of the device REST surface the dashboard talks to:
// cookie-based login, a bounded session table, system and subsystem reads,
// and VLAN writes.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// VLAN is one simulated VLAN entry.
type VLAN struct {
	Name  string `json:"name"`
	Admin string `json:"admin"`
}

// SwitchSim is a fake AOS-CX switch behind an httptest server. All exported
// fields are read at request time under the simulator lock; tests may mutate
// them between requests.
type SwitchSim struct {
	Server *httptest.Server

	mu sync.Mutex

	// Accepted credentials. Empty Username accepts nothing.
	Username string
	Password string

	// MaxSessions bounds concurrent logins; 0 means unlimited.
	MaxSessions int
	sessions    map[string]bool

	// CentralManaged makes every write answer 410 with a Central body.
	CentralManaged bool
	// DeprecatedAPI makes every request answer 410 with a generic body.
	DeprecatedAPI bool
	// ReadOnly makes writes answer 403.
	ReadOnly bool
	// NoBulkQueries rejects depth/attribute queries the way older firmware
	// does, forcing clients onto their per-object fallback paths.
	NoBulkQueries bool

	Platform  string
	Hostname  string
	Firmware  string
	VLANs     map[int]VLAN
	PortCount int

	// Chassis, when non-nil, is served verbatim as the chassis subsystem
	// document. Nil answers 404.
	Chassis map[string]any
	// LLDPStatus is the status for the LLDP neighbors probe.
	LLDPStatus int

	// Request counters by logical endpoint.
	LoginCalls   int
	LogoutCalls  int
	SystemCalls  int
	ChassisCalls int
	VLANWrites   int
}

// NewSwitchSim starts a simulator accepting admin/admin with a handful of
// VLANs. Callers own shutdown via Close.
func NewSwitchSim() *SwitchSim {
	s := &SwitchSim{
		Username:   "admin",
		Password:   "admin",
		sessions:   make(map[string]bool),
		Platform:   "6300M",
		Hostname:   "lab-sw1",
		Firmware:   "FL.10.09.1000",
		VLANs:      map[int]VLAN{1: {Name: "DEFAULT_VLAN_1", Admin: "up"}},
		PortCount:  24,
		LLDPStatus: http.StatusOK,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the underlying server down.
func (s *SwitchSim) Close() {
	s.Server.Close()
}

// BaseURL returns the URL to hand to a client as its REST prefix.
func (s *SwitchSim) BaseURL() string {
	return s.Server.URL
}

// ActiveSessions returns how many logins currently hold a slot.
func (s *SwitchSim) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// FillSessions occupies n session slots directly, simulating other clients.
func (s *SwitchSim) FillSessions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.sessions["external-"+uuid.NewString()] = true
	}
}

func (s *SwitchSim) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	// Clients may or may not include the /rest/vX prefix.
	if i := strings.Index(path, "/rest/"); i >= 0 {
		rest := path[i+len("/rest/"):]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}

	if s.DeprecatedAPI {
		w.WriteHeader(http.StatusGone)
		fmt.Fprint(w, "API version is deprecated")
		return
	}

	switch {
	case path == "/login" && r.Method == http.MethodPost:
		s.handleLogin(w, r)
	case path == "/logout" && r.Method == http.MethodPost:
		s.handleLogout(w, r)
	case path == "/system" && r.Method == http.MethodGet:
		s.handleSystem(w, r)
	case path == "/system/vlans" && r.Method == http.MethodGet:
		s.handleVLANList(w, r)
	case strings.HasPrefix(path, "/system/vlans/"):
		s.handleVLAN(w, r, strings.TrimPrefix(path, "/system/vlans/"))
	case strings.HasPrefix(path, "/system/subsystems/chassis"):
		s.handleChassis(w, r)
	case strings.HasPrefix(path, "/system/interfaces"):
		s.handleInterfaces(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *SwitchSim) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.LoginCalls++
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.MaxSessions > 0 && len(s.sessions) >= s.MaxSessions {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "Session limit reached")
		return
	}
	if r.PostFormValue("username") != s.Username || r.PostFormValue("password") != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Authentication failure")
		return
	}
	id := uuid.NewString()
	s.sessions[id] = true
	http.SetCookie(w, &http.Cookie{Name: "id", Value: id, Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (s *SwitchSim) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.LogoutCalls++
	if c, err := r.Cookie("id"); err == nil {
		delete(s.sessions, c.Value)
	} else if len(s.sessions) > 0 {
		// An unauthenticated logout still frees one slot; real devices
		// reap idle sessions and this approximates that for limit tests.
		for id := range s.sessions {
			delete(s.sessions, id)
			break
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *SwitchSim) authed(r *http.Request) bool {
	c, err := r.Cookie("id")
	return err == nil && s.sessions[c.Value]
}

func (s *SwitchSim) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.SystemCalls++
	if !s.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{
		"hostname":         s.Hostname,
		"platform_name":    s.Platform,
		"software_version": s.Firmware,
	})
}

// BulkVLANQueries disables depth queries on the VLAN listing, forcing the
// per-VLAN fallback path, when set to false.
func (s *SwitchSim) handleVLANList(w http.ResponseWriter, r *http.Request) {
	if !s.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("depth") != "" && !s.NoBulkQueries {
		out := make(map[string]VLAN, len(s.VLANs))
		for id, v := range s.VLANs {
			out[strconv.Itoa(id)] = v
		}
		writeJSON(w, out)
		return
	}
	out := make(map[string]string, len(s.VLANs))
	for id := range s.VLANs {
		out[strconv.Itoa(id)] = fmt.Sprintf("/rest/v10.09/system/vlans/%d", id)
	}
	writeJSON(w, out)
}

func (s *SwitchSim) handleVLAN(w http.ResponseWriter, r *http.Request, rawID string) {
	if !s.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, ok := s.VLANs[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, v)
	case http.MethodPut, http.MethodDelete:
		s.VLANWrites++
		if s.CentralManaged {
			w.WriteHeader(http.StatusGone)
			fmt.Fprint(w, "Configuration blocked: switch is managed by Aruba Central")
			return
		}
		if s.ReadOnly {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if id < 1 || id > 4094 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "Invalid VLAN ID")
			return
		}
		if r.Method == http.MethodDelete {
			if _, ok := s.VLANs[id]; !ok {
				http.NotFound(w, r)
				return
			}
			delete(s.VLANs, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var v VLAN
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.VLANs[id] = v
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *SwitchSim) handleChassis(w http.ResponseWriter, r *http.Request) {
	s.ChassisCalls++
	if !s.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.Chassis == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.Chassis)
}

func (s *SwitchSim) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	if !s.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if strings.Contains(r.URL.Path, "lldp") {
		w.WriteHeader(s.LLDPStatus)
		if s.LLDPStatus == http.StatusOK {
			fmt.Fprint(w, "{}")
		}
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/system/interfaces")
	name = strings.TrimPrefix(name, "/")
	if name != "" {
		// Single interface document.
		decoded := strings.ReplaceAll(name, "%2F", "/")
		writeJSON(w, map[string]any{
			"name":        decoded,
			"admin_state": "up",
			"link_state":  "up",
			"link_speed":  1000000000,
		})
		return
	}

	depth := r.URL.Query().Get("depth")
	attrs := r.URL.Query().Get("attributes")
	if (depth != "" || attrs != "") && s.NoBulkQueries {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "depth queries not supported")
		return
	}
	if depth == "" && attrs == "" {
		out := make(map[string]string, s.PortCount)
		for i := 1; i <= s.PortCount; i++ {
			port := fmt.Sprintf("1/1/%d", i)
			out[port] = "/rest/v10.09/system/interfaces/" + strings.ReplaceAll(port, "/", "%2F")
		}
		writeJSON(w, out)
		return
	}

	out := make(map[string]any, s.PortCount)
	for i := 1; i <= s.PortCount; i++ {
		port := fmt.Sprintf("1/1/%d", i)
		out[port] = map[string]any{
			"name":        port,
			"admin_state": "up",
			"link_state":  "up",
			"link_speed":  1000000000,
		}
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
