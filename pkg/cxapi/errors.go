// Package cxapi implements the connectivity and capability layer for AOS-CX
// switch REST APIs: authenticated session management, credential resolution,
// error classification, management-mode detection, and hardware capability
// probing.
package cxapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cxdash/cxdash/pkg/util"
)

// Kind identifies a class of switch connection or operation failure.
type Kind string

// Error kinds, exhaustive. Every failure surfaced by this package is one of
// these; bare transport errors never escape.
const (
	KindSessionLimit       Kind = "session_limit"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindConnectionTimeout  Kind = "connection_timeout"
	KindPermissionDenied   Kind = "permission_denied"
	KindAPIUnavailable     Kind = "api_unavailable"
	KindCentralManaged     Kind = "central_managed"
	KindVLANOperation      Kind = "vlan_operation_error"
	KindUnknownSwitch      Kind = "unknown_error"
)

// Sentinel errors, one per kind, for errors.Is matching.
var (
	ErrSessionLimit       = errors.New("switch session limit reached")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConnectionTimeout  = errors.New("switch unreachable")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAPIUnavailable     = errors.New("rest api unavailable")
	ErrCentralManaged     = errors.New("switch is central-managed")
	ErrVLANOperation      = errors.New("vlan operation failed")
	ErrUnknownSwitch      = errors.New("unexpected switch error")
)

var sentinels = map[Kind]error{
	KindSessionLimit:       ErrSessionLimit,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindConnectionTimeout:  ErrConnectionTimeout,
	KindPermissionDenied:   ErrPermissionDenied,
	KindAPIUnavailable:     ErrAPIUnavailable,
	KindCentralManaged:     ErrCentralManaged,
	KindVLANOperation:      ErrVLANOperation,
	KindUnknownSwitch:      ErrUnknownSwitch,
}

// Error is a classified switch failure with remediation guidance. It is
// immutable after construction.
type Error struct {
	Kind       Kind   `json:"error_type"`
	Message    string `json:"error"`
	Suggestion string `json:"suggestion"`
	SwitchIP   string `json:"switch_ip"`
	Username   string `json:"username,omitempty"`
	Status     int    `json:"status_code,omitempty"`
	Body       string `json:"response_text,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap maps the error to its kind sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	if s, ok := sentinels[e.Kind]; ok {
		return s
	}
	return ErrUnknownSwitch
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// AsError extracts the classified error from err, wrapping unclassified
// errors as UnknownSwitch so the caller always has the full payload shape.
func AsError(err error, switchIP string) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return NewUnknownSwitchError(switchIP, 0, err.Error())
}

// Fixed remediation text per kind, shown verbatim in the dashboard.
const (
	suggestionSessionLimit = "Switch has too many active sessions. This typically resolves automatically within " +
		"5-10 minutes. You can: 1) Wait for sessions to timeout naturally, " +
		"2) Use the 'Clear Sessions' button to attempt cleanup, or " +
		"3) Reboot the switch if you have CLI access."
	suggestionInvalidCredentials = "Please check your username and password. Common issues: " +
		"1) Verify username (usually 'admin'), " +
		"2) Check password for typos, " +
		"3) Ensure user has admin privileges, " +
		"4) Check if account is locked due to failed attempts."
	suggestionConnectionTimeout = "Network connectivity issue. Please check: " +
		"1) IP address is correct, " +
		"2) Switch is powered on and reachable via ping, " +
		"3) No firewall blocking HTTPS (port 443), " +
		"4) Switch is on the same network/VLAN."
	suggestionPermissionDenied = "Authentication succeeded but user lacks admin privileges. " +
		"1) Ensure user has admin/manager role, " +
		"2) Check user permissions in switch configuration, " +
		"3) Some operations require full admin access."
	suggestionAPIUnavailable = "Switch REST API is not properly configured. Please check: " +
		"1) HTTPS server is enabled, " +
		"2) REST API access is enabled, " +
		"3) The configured API version is supported, " +
		"4) HTTPS server mode is set to 'read-write' (not read-only)."
	suggestionCentralManaged = "This switch is managed by Aruba Central and blocks direct API access. " +
		"1) Use Aruba Central interface for management, " +
		"2) Add this as a Central-managed device instead, " +
		"3) Disable Central management if local control is needed."
	suggestionVLANOperation = "VLAN operation failed. Common issues: " +
		"1) VLAN ID already exists (for creation), " +
		"2) VLAN ID doesn't exist (for modification/deletion), " +
		"3) VLAN is in use and cannot be deleted, " +
		"4) Switch is in read-only mode or Central-managed."
	suggestionUnknownSwitch = "An unexpected error occurred. This may indicate: " +
		"1) Switch firmware issue, " +
		"2) Unsupported API version, " +
		"3) Switch configuration problem, " +
		"4) Network instability. Please check switch logs and try again."
)

// NewSessionLimitError reports a saturated embedded HTTP server.
func NewSessionLimitError(switchIP, info string) *Error {
	msg := fmt.Sprintf("Switch session limit reached for %s", switchIP)
	if info != "" {
		msg += ": " + info
	}
	return &Error{Kind: KindSessionLimit, Message: msg, Suggestion: suggestionSessionLimit, SwitchIP: switchIP}
}

// NewInvalidCredentialsError reports a failed authentication attempt.
func NewInvalidCredentialsError(switchIP, username, details string) *Error {
	msg := fmt.Sprintf("Invalid credentials for user '%s' on switch %s", username, switchIP)
	if details != "" {
		msg += ": " + details
	}
	return &Error{Kind: KindInvalidCredentials, Message: msg, Suggestion: suggestionInvalidCredentials, SwitchIP: switchIP, Username: username}
}

// NewConnectionTimeoutError reports an unreachable switch.
func NewConnectionTimeoutError(switchIP, details string) *Error {
	msg := fmt.Sprintf("Cannot reach switch %s", switchIP)
	if details != "" {
		msg += ": " + details
	}
	return &Error{Kind: KindConnectionTimeout, Message: msg, Suggestion: suggestionConnectionTimeout, SwitchIP: switchIP}
}

// NewPermissionDeniedError reports an authenticated but under-privileged user.
func NewPermissionDeniedError(switchIP, username, operation string) *Error {
	msg := fmt.Sprintf("User '%s' lacks required permissions on switch %s", username, switchIP)
	if operation != "" {
		msg += " for operation: " + operation
	}
	return &Error{Kind: KindPermissionDenied, Message: msg, Suggestion: suggestionPermissionDenied, SwitchIP: switchIP, Username: username}
}

// NewAPIUnavailableError reports a missing or misconfigured REST API surface.
func NewAPIUnavailableError(switchIP, details string) *Error {
	msg := fmt.Sprintf("REST API unavailable on switch %s", switchIP)
	if details != "" {
		msg += ": " + details
	}
	return &Error{Kind: KindAPIUnavailable, Message: msg, Suggestion: suggestionAPIUnavailable, SwitchIP: switchIP}
}

// NewCentralManagedError reports a switch whose local writes are blocked by
// Aruba Central.
func NewCentralManagedError(switchIP string) *Error {
	return &Error{
		Kind:       KindCentralManaged,
		Message:    fmt.Sprintf("Switch %s is managed by Aruba Central", switchIP),
		Suggestion: suggestionCentralManaged,
		SwitchIP:   switchIP,
	}
}

// NewVLANOperationError reports a domain-specific VLAN failure.
func NewVLANOperationError(switchIP, operation string, vlanID int, details string) *Error {
	msg := fmt.Sprintf("VLAN %s failed on switch %s", operation, switchIP)
	if vlanID > 0 {
		msg += fmt.Sprintf(" for VLAN %d", vlanID)
	}
	if details != "" {
		msg += ": " + details
	}
	return &Error{Kind: KindVLANOperation, Message: msg, Suggestion: suggestionVLANOperation, SwitchIP: switchIP}
}

// NewUnknownSwitchError preserves the raw status and truncated body for
// diagnosis. It is the fallback kind; nothing is silently swallowed.
func NewUnknownSwitchError(switchIP string, status int, body string) *Error {
	msg := fmt.Sprintf("Unexpected error from switch %s", switchIP)
	if status > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", status)
	}
	body = util.Truncate(body, 500)
	if body != "" {
		msg += ": " + body
	}
	return &Error{Kind: KindUnknownSwitch, Message: msg, Suggestion: suggestionUnknownSwitch, SwitchIP: switchIP, Status: status, Body: body}
}

// Body markers checked case-insensitively during classification.
var sessionLimitMarkers = []string{"session limit", "too many sessions", "maximum number of sessions"}

func bodyIndicatesSessionLimit(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range sessionLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func bodyIndicatesCentral(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "central") || strings.Contains(lower, "blocked")
}

// Classify turns a raw HTTP outcome into a typed error. The transport error,
// when present, takes precedence over the status code. Unmatched cases fall
// back to UnknownSwitch.
func Classify(switchIP, username string, status int, body string, err error) *Error {
	if err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout(),
			errors.Is(err, context.DeadlineExceeded):
			return NewConnectionTimeoutError(switchIP, "connection timed out")
		case strings.Contains(err.Error(), "connection refused"),
			strings.Contains(err.Error(), "no route to host"),
			strings.Contains(err.Error(), "no such host"):
			return NewConnectionTimeoutError(switchIP, err.Error())
		default:
			return NewUnknownSwitchError(switchIP, 0, err.Error())
		}
	}

	if bodyIndicatesSessionLimit(body) {
		return NewSessionLimitError(switchIP, util.Truncate(body, 200))
	}

	switch status {
	case 401:
		return NewInvalidCredentialsError(switchIP, username, "")
	case 403:
		return NewPermissionDeniedError(switchIP, username, "")
	case 404:
		return NewAPIUnavailableError(switchIP, "login endpoint not found")
	case 410:
		// 410 is overloaded: Central-managed switches block writes with it,
		// but deprecated API versions answer with it too. The body text
		// disambiguates; when it cannot, both hypotheses are surfaced.
		if bodyIndicatesCentral(body) {
			return NewCentralManagedError(switchIP)
		}
		return NewAPIUnavailableError(switchIP,
			"HTTP 410: API version deprecated, or switch is Central-managed with writes blocked")
	}

	return NewUnknownSwitchError(switchIP, status, body)
}
