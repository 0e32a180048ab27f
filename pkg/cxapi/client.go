package cxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/cxdash/cxdash/pkg/audit"
	"github.com/cxdash/cxdash/pkg/util"
)

// Timeouts are the tiered call deadlines toward a device. Short covers
// best-effort probes (PoE, fans, LLDP), medium covers primary system and
// VLAN calls, long covers bulk interface listings.
type Timeouts struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// DefaultTimeouts returns the standard 3s/10s/15s tiers.
func DefaultTimeouts() Timeouts {
	return Timeouts{Short: 3 * time.Second, Medium: 10 * time.Second, Long: 15 * time.Second}
}

func (t Timeouts) orDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Short <= 0 {
		t.Short = d.Short
	}
	if t.Medium <= 0 {
		t.Medium = d.Medium
	}
	if t.Long <= 0 {
		t.Long = d.Long
	}
	return t
}

// maxResponseBytes caps how much of a device response is read. Embedded HTTP
// servers should never exceed this, but a misbehaving one must not exhaust
// memory.
const maxResponseBytes = 4 << 20

// Client issues REST calls against one switch over a cookie-bearing HTTP
// client. It is the transport handle owned by a Session; it never interprets
// payloads beyond reading them.
type Client struct {
	switchIP string
	baseURL  string
	hc       *http.Client
	timeouts Timeouts
	recorder audit.Recorder
}

// NewClient creates a client for the given switch. baseURL is the full REST
// prefix, e.g. "https://10.0.0.5/rest/v10.09". A nil recorder disables audit
// logging.
func NewClient(switchIP, baseURL string, sslVerify bool, timeouts Timeouts, recorder audit.Recorder) *Client {
	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !sslVerify},
	}
	return &Client{
		switchIP: switchIP,
		baseURL:  baseURL,
		hc:       &http.Client{Jar: jar, Transport: transport},
		timeouts: timeouts.orDefaults(),
		recorder: recorder,
	}
}

// SwitchIP returns the device address this client talks to.
func (c *Client) SwitchIP() string {
	return c.switchIP
}

// BaseURL returns the REST prefix, without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeouts returns the configured call deadline tiers.
func (c *Client) Timeouts() Timeouts {
	return c.timeouts
}

// Response is the raw outcome of one device call.
type Response struct {
	Status int
	Body   []byte
}

// Do performs one REST call. path is relative to the base URL. The call is
// recorded to the audit log with its duration regardless of outcome.
// A transport failure returns a nil response and the raw error; callers
// classify it.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = c.timeouts.Medium
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.record(audit.NewEvent(method, url, string(body), 0, "", time.Since(start)).
			WithSwitch(c.switchIP).WithError(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)

	c.record(audit.NewEvent(method, url, string(body), resp.StatusCode, string(respBody), duration).
		WithSwitch(c.switchIP))

	entry := util.WithSwitch(c.switchIP)
	if resp.StatusCode >= 400 {
		entry.Warnf("API %s %s -> %d (%dms)", method, path, resp.StatusCode, duration.Milliseconds())
	} else {
		entry.Debugf("API %s %s -> %d (%dms)", method, path, resp.StatusCode, duration.Milliseconds())
	}

	if readErr != nil {
		return nil, readErr
	}
	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}

// Get issues a GET with the given timeout tier.
func (c *Client) Get(ctx context.Context, path string, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "", timeout)
}

// PutJSON issues a PUT with a JSON body at the medium tier.
func (c *Client) PutJSON(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, "application/json", c.timeouts.Medium)
}

// PostForm issues a form-encoded POST at the medium tier.
func (c *Client) PostForm(ctx context.Context, path, form string) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, []byte(form), "application/x-www-form-urlencoded", c.timeouts.Medium)
}

// Delete issues a DELETE at the medium tier.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, "", c.timeouts.Medium)
}

// HasCookies reports whether the underlying jar holds a session cookie for
// the base URL.
func (c *Client) HasCookies() bool {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	return len(c.hc.Jar.Cookies(req.URL)) > 0
}

func (c *Client) record(event *audit.Event) {
	if c.recorder != nil {
		c.recorder.Record(event)
	}
}
