// Package central talks to the Aruba Central cloud API for switches whose
// configuration is owned by Central. It covers the dashboard's needs only:
// token handling, device lookup by serial, VLAN reads and writes, and port
// bounce.
package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cxdash/cxdash/pkg/cache"
	"github.com/cxdash/cxdash/pkg/util"
)

// Config holds Central API access settings.
type Config struct {
	// BaseURL is the regional Central endpoint, e.g.
	// "https://apigw-prod2.central.arubanetworks.com".
	BaseURL      string
	ClientID     string
	ClientSecret string
	CustomerID   string
	Timeout      time.Duration
}

// deviceTTL bounds how long a serial lookup is trusted. Central inventory
// changes rarely; five minutes keeps repeated dashboard loads cheap.
const deviceTTL = 5 * time.Minute

// Device is one switch as Central reports it.
type Device struct {
	Serial    string `json:"serial"`
	Name      string `json:"name"`
	MACAddr   string `json:"macaddr"`
	IP        string `json:"ip_address"`
	Model     string `json:"model"`
	Status    string `json:"status"`
	GroupName string `json:"group_name"`
}

// VLAN is one VLAN as Central reports it.
type VLAN struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Client is an authenticated Central API client. Safe for concurrent use.
type Client struct {
	cfg Config
	hc  *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	devices *cache.Cache[Device]
	now     func() time.Time
}

// New creates a client. No network traffic happens until the first call.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		devices: cache.New[Device](deviceTTL),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	c.devices.SetClock(now)
}

// ensureToken fetches or refreshes the OAuth2 access token. Central issues
// client-credential tokens valid for two hours; a 60s margin avoids using a
// token that expires mid-request.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(time.Minute).Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	if c.cfg.CustomerID != "" {
		form.Set("customer_id", c.cfg.CustomerID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/oauth2/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("central token request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("central token request failed: HTTP %d: %s",
			resp.StatusCode, util.Truncate(string(body), 200))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("central token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("central token response carried no access_token")
	}

	c.token = tok.AccessToken
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 7200
	}
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	util.Debugf("central: obtained access token, valid %ds", tok.ExpiresIn)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("central %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// TestConnection verifies credentials by fetching a token and issuing a
// minimal inventory query.
func (c *Client) TestConnection(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/monitoring/v1/switches?limit=1", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("central inventory query failed: HTTP %d: %s",
			status, util.Truncate(string(body), 200))
	}
	return nil
}

// DeviceBySerial looks a switch up in Central's inventory. Results are
// cached for a few minutes per serial.
func (c *Client) DeviceBySerial(ctx context.Context, serial string) (Device, error) {
	return c.devices.GetOrSet(serial, deviceTTL, func() (Device, error) {
		status, body, err := c.do(ctx, http.MethodGet, "/monitoring/v1/switches/"+url.PathEscape(serial), nil)
		if err != nil {
			return Device{}, err
		}
		if status == http.StatusNotFound {
			return Device{}, fmt.Errorf("central has no switch with serial %s", serial)
		}
		if status != http.StatusOK {
			return Device{}, fmt.Errorf("central device lookup failed: HTTP %d", status)
		}
		var dev Device
		if err := json.Unmarshal(body, &dev); err != nil {
			return Device{}, fmt.Errorf("central device response: %w", err)
		}
		dev.Serial = serial
		return dev, nil
	})
}

// ListVLANs returns the VLANs Central reports for a switch.
func (c *Client) ListVLANs(ctx context.Context, serial string) ([]VLAN, error) {
	status, body, err := c.do(ctx, http.MethodGet,
		"/monitoring/v1/switches/"+url.PathEscape(serial)+"/vlan", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("central VLAN list failed: HTTP %d", status)
	}

	var payload struct {
		Result []VLAN `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("central VLAN response: %w", err)
	}
	return payload.Result, nil
}

// CreateVLAN pushes a VLAN onto a Central-managed switch through the
// configuration API.
func (c *Client) CreateVLAN(ctx context.Context, serial string, id int, name string) error {
	payload, _ := json.Marshal(map[string]any{
		"vlan_id":   id,
		"vlan_name": name,
	})
	status, body, err := c.do(ctx, http.MethodPost,
		"/configuration/v1/switches/"+url.PathEscape(serial)+"/vlans", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("central VLAN create failed: HTTP %d: %s",
			status, util.Truncate(string(body), 200))
	}
	return nil
}

// DeleteVLAN removes a VLAN from a Central-managed switch.
func (c *Client) DeleteVLAN(ctx context.Context, serial string, id int) error {
	status, body, err := c.do(ctx, http.MethodDelete,
		"/configuration/v1/switches/"+url.PathEscape(serial)+"/vlans/"+strconv.Itoa(id), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("central VLAN delete failed: HTTP %d: %s",
			status, util.Truncate(string(body), 200))
	}
	return nil
}

// BouncePort power-cycles PoE or resets a port on a Central-managed switch.
func (c *Client) BouncePort(ctx context.Context, serial, port string) error {
	payload, _ := json.Marshal(map[string]any{"port": port})
	status, body, err := c.do(ctx, http.MethodPost,
		"/device_management/v1/device/"+url.PathEscape(serial)+"/action/bounce_interface", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("central port bounce failed: HTTP %d: %s",
			status, util.Truncate(string(body), 200))
	}
	return nil
}
