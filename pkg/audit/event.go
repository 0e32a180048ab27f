// Package audit records every REST call made to a managed device, for
// debugging and observability.
package audit

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cxdash/cxdash/pkg/util"
)

// Event represents one device API call.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SwitchIP    string    `json:"switch_ip"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	RequestData string    `json:"request_data,omitempty"`
	Status      int       `json:"response_code"`
	Response    string    `json:"response_text,omitempty"`
	RespSize    int       `json:"response_size"`
	DurationMS  float64   `json:"duration_ms"`
	Success     bool      `json:"success"`
	Category    string    `json:"category"`
	Error       string    `json:"error,omitempty"`
}

// Categories assigned by Categorize.
const (
	CategoryAuth      = "authentication"
	CategoryVLAN      = "vlan_management"
	CategorySystem    = "system_info"
	CategoryCleanup   = "session_cleanup"
	CategoryRetrieval = "data_retrieval"
	CategoryConfig    = "configuration"
	CategoryDeletion  = "deletion"
	CategoryGeneral   = "general"
)

// NewEvent creates an event for one completed call. The request data is
// redacted before storage and the response body truncated.
func NewEvent(method, rawURL, requestData string, status int, responseText string, duration time.Duration) *Event {
	e := &Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		SwitchIP:    hostFromURL(rawURL),
		Method:      strings.ToUpper(method),
		URL:         rawURL,
		RequestData: util.RedactQueryPassword(requestData),
		Status:      status,
		Response:    util.Truncate(responseText, 1000),
		RespSize:    len(responseText),
		DurationMS:  float64(duration.Microseconds()) / 1000.0,
		Success:     status >= 200 && status < 400,
	}
	e.Category = Categorize(rawURL, method)
	return e
}

// WithSwitch overrides the switch IP derived from the URL.
func (e *Event) WithSwitch(switchIP string) *Event {
	e.SwitchIP = switchIP
	return e
}

// WithError attaches a transport-level error. Transport failures have no
// HTTP status and are never successful.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Categorize buckets calls by URL and method for filtering and statistics.
func Categorize(rawURL, method string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "logout"):
		return CategoryCleanup
	case strings.Contains(lower, "login") || strings.Contains(lower, "auth"):
		return CategoryAuth
	case strings.Contains(lower, "vlan"):
		return CategoryVLAN
	case strings.Contains(lower, "system"):
		return CategorySystem
	}
	switch strings.ToUpper(method) {
	case "GET":
		return CategoryRetrieval
	case "POST", "PUT", "PATCH":
		return CategoryConfig
	case "DELETE":
		return CategoryDeletion
	}
	return CategoryGeneral
}

func hostFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
