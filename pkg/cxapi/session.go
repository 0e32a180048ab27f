package cxapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cxdash/cxdash/pkg/audit"
	"github.com/cxdash/cxdash/pkg/util"
)

// Credentials is one username/password pair.
type Credentials struct {
	Username string
	Password string
}

// CredentialStore provides credentials previously saved for a switch.
// Implemented by the switch inventory.
type CredentialStore interface {
	SavedCredentials(switchIP string) (Credentials, bool)
}

// Session is an authenticated connection to one switch. It wraps the
// cookie-bearing transport client plus a fixed expiry; construction and
// destruction are its only mutation points.
type Session struct {
	SwitchIP   string
	APIVersion string
	Username   string
	Source     Source
	CreatedAt  time.Time
	ExpiresAt  time.Time

	client *Client
}

// Client returns the transport handle for this session.
func (s *Session) Client() *Client {
	return s.client
}

// Options configures a SessionManager.
type Options struct {
	// APIVersion is the REST version segment, e.g. "v10.09".
	APIVersion string
	SSLVerify  bool
	Timeouts   Timeouts

	// SessionTTL is the fixed lifetime from creation. Zero means 15 minutes.
	SessionTTL time.Duration

	// Defaults are tried in order when no explicit or saved credentials
	// exist for a switch.
	Defaults []Credentials

	// Saved, when non-nil, supplies per-switch stored credentials.
	Saved CredentialStore

	Recorder audit.Recorder
	Retry    RetryPolicy

	// BaseURL overrides how the REST prefix is derived from a switch IP.
	// Used by tests to point at a local simulator.
	BaseURL func(switchIP string) string
}

// DefaultSessionTTL is the fixed session lifetime used when Options leaves
// it unset.
const DefaultSessionTTL = 15 * time.Minute

// SessionManager owns at most one live authenticated session per switch IP.
// Access for the same IP is serialized through a per-IP lock so two
// concurrent requests cannot trip the device's session limit with duplicate
// logins.
type SessionManager struct {
	opts     Options
	resolver CredentialResolver

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex

	now func() time.Time
}

// NewSessionManager creates a manager with the given options.
func NewSessionManager(opts Options) *SessionManager {
	if opts.APIVersion == "" {
		opts.APIVersion = "v10.09"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.BaseURL == nil {
		version := opts.APIVersion
		opts.BaseURL = func(switchIP string) string {
			return fmt.Sprintf("https://%s/rest/%s", switchIP, version)
		}
	}
	return &SessionManager{
		opts:     opts,
		resolver: CredentialResolver{Defaults: opts.Defaults, Saved: opts.Saved},
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *SessionManager) clock() func() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// lockFor returns the per-IP mutex, creating it on first use.
func (m *SessionManager) lockFor(switchIP string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[switchIP]
	if !ok {
		l = &sync.Mutex{}
		m.locks[switchIP] = l
	}
	return l
}

func (m *SessionManager) cached(switchIP string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[switchIP]
}

func (m *SessionManager) store(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SwitchIP] = session
}

func (m *SessionManager) drop(switchIP string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[switchIP]
	delete(m.sessions, switchIP)
	return s
}

// Authenticate returns a working session for switchIP, reusing a cached one
// when it is still valid. Credentials are resolved defaults-first in their
// configured order, then any pair saved for the switch.
func (m *SessionManager) Authenticate(ctx context.Context, switchIP string) (*Session, error) {
	return m.authenticate(ctx, switchIP, m.resolver.Candidates(switchIP, nil))
}

// AuthenticateWith returns a working session for switchIP using exactly the
// given credentials, with no fallthrough to saved or default pairs. A cached
// valid session is still reused.
func (m *SessionManager) AuthenticateWith(ctx context.Context, switchIP string, creds Credentials) (*Session, error) {
	return m.authenticate(ctx, switchIP, m.resolver.Candidates(switchIP, &creds))
}

func (m *SessionManager) authenticate(ctx context.Context, switchIP string, candidates []Candidate) (*Session, error) {
	lock := m.lockFor(switchIP)
	lock.Lock()
	defer lock.Unlock()

	if s := m.cached(switchIP); s != nil {
		if m.validate(ctx, s) {
			return s, nil
		}
		m.drop(switchIP)
	}

	var lastErr error
	for _, cand := range candidates {
		session, err := m.loginWithRecovery(ctx, switchIP, cand)
		if err == nil {
			m.store(session)
			return session, nil
		}
		lastErr = err
		// Credential errors mean this pair is wrong, not the device: try
		// the next candidate. Anything else is a device/network condition
		// that further pairs cannot fix.
		if !IsKind(err, KindInvalidCredentials) && !IsKind(err, KindPermissionDenied) {
			return nil, err
		}
	}
	return nil, lastErr
}

// validate checks a cached session with one lightweight probe plus the local
// expiry clock. Both must pass for the session to be reused.
func (m *SessionManager) validate(ctx context.Context, s *Session) bool {
	if m.clock()().After(s.ExpiresAt) {
		util.WithSwitch(s.SwitchIP).Debug("cached session expired locally")
		return false
	}
	resp, err := s.client.Get(ctx, "/system", s.client.Timeouts().Medium)
	if err != nil || resp.Status != http.StatusOK {
		util.WithSwitch(s.SwitchIP).Debug("cached session failed probe, discarding")
		return false
	}
	return true
}

// loginWithRecovery performs a fresh login. When the device reports a
// session-limit condition, a bounded cleanup-and-retry sequence attempts to
// free a session slot. That sequence is best-effort: it is not guaranteed to
// succeed and consumes login attempts on an already saturated device.
func (m *SessionManager) loginWithRecovery(ctx context.Context, switchIP string, cand Candidate) (*Session, error) {
	session, err := m.login(ctx, switchIP, cand)
	if err == nil || !IsKind(err, KindSessionLimit) {
		return session, err
	}

	util.WithSwitch(switchIP).Warn("session limit reached, attempting cleanup")
	retryErr := m.opts.Retry.Do(ctx, func(attempt int) error {
		m.freeSessionSlot(ctx, switchIP, cand.Credentials)
		var loginErr error
		session, loginErr = m.login(ctx, switchIP, cand)
		return loginErr
	}, func(err error) bool {
		return IsKind(err, KindSessionLimit)
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return session, nil
}

// freeSessionSlot cycles login/logout with a small set of credential
// permutations, hoping to release an idle slot on the device. Failures are
// expected and ignored.
func (m *SessionManager) freeSessionSlot(ctx context.Context, switchIP string, primary Credentials) {
	perms := []Credentials{primary}
	for _, cand := range m.resolver.Candidates(switchIP, nil) {
		perms = append(perms, cand.Credentials)
	}

	seen := make(map[string]bool)
	for _, creds := range perms {
		key := creds.Username + "\x00" + creds.Password
		if seen[key] {
			continue
		}
		seen[key] = true

		client := m.newClient(switchIP)
		resp, err := client.PostForm(ctx, "/login", loginForm(creds))
		if err != nil {
			continue
		}
		// A logout follows even when the login was refused: devices reap
		// idle sessions when handling logout requests, which is the slot
		// we are actually after.
		client.Do(ctx, http.MethodPost, "/logout", nil, "", client.Timeouts().Short)
		if resp.Status == http.StatusOK {
			util.WithSwitch(switchIP).Debugf("cycled a session slot as %s", creds.Username)
			return
		}
	}
}

func (m *SessionManager) newClient(switchIP string) *Client {
	return NewClient(switchIP, m.opts.BaseURL(switchIP), m.opts.SSLVerify, m.opts.Timeouts, m.opts.Recorder)
}

func loginForm(creds Credentials) string {
	return fmt.Sprintf("username=%s&password=%s",
		url.QueryEscape(creds.Username), url.QueryEscape(creds.Password))
}

// login submits credentials to the device's login endpoint and interprets
// the response into the error taxonomy.
func (m *SessionManager) login(ctx context.Context, switchIP string, cand Candidate) (*Session, error) {
	client := m.newClient(switchIP)
	creds := cand.Credentials

	resp, err := client.PostForm(ctx, "/login", loginForm(creds))
	if err != nil {
		return nil, Classify(switchIP, creds.Username, 0, "", err)
	}

	body := string(resp.Body)
	if resp.Status != http.StatusOK || bodyIndicatesSessionLimit(body) {
		return nil, Classify(switchIP, creds.Username, resp.Status, body, nil)
	}
	if !client.HasCookies() {
		return nil, NewUnknownSwitchError(switchIP, resp.Status,
			"authentication succeeded but no session cookie received")
	}

	now := m.clock()()
	session := &Session{
		SwitchIP:   switchIP,
		APIVersion: m.opts.APIVersion,
		Username:   creds.Username,
		Source:     cand.Source,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.opts.SessionTTL),
		client:     client,
	}
	util.WithSwitch(switchIP).Infof("authenticated as %s via %s credentials (API %s)",
		creds.Username, cand.Source, m.opts.APIVersion)
	return session, nil
}

// Cleanup removes the cached session for switchIP. With forceLogout a
// best-effort POST to the logout endpoint is issued first; its outcome never
// blocks removal of local state, since a stale local session reference is
// worse than an unconfirmed remote logout. Idempotent.
func (m *SessionManager) Cleanup(ctx context.Context, switchIP string, forceLogout bool) {
	lock := m.lockFor(switchIP)
	lock.Lock()
	defer lock.Unlock()

	s := m.drop(switchIP)
	if s == nil || !forceLogout {
		return
	}
	if _, err := s.client.Do(ctx, http.MethodPost, "/logout", nil, "", s.client.Timeouts().Short); err != nil {
		util.WithSwitch(switchIP).Debugf("logout failed (ignored): %v", err)
	}
}

// CleanupAll logs out and removes every cached session. Called on shutdown
// so device session slots are not leaked.
func (m *SessionManager) CleanupAll(ctx context.Context) {
	m.mu.Lock()
	ips := make([]string, 0, len(m.sessions))
	for ip := range m.sessions {
		ips = append(ips, ip)
	}
	m.mu.Unlock()

	for _, ip := range ips {
		m.Cleanup(ctx, ip, true)
	}
}

// ActiveSessions returns the IPs with a cached session, for diagnostics.
func (m *SessionManager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ips := make([]string, 0, len(m.sessions))
	for ip := range m.sessions {
		ips = append(ips, ip)
	}
	return ips
}
