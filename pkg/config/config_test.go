package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.API.Version != "v10.09" {
		t.Errorf("API.Version = %q, want v10.09", cfg.API.Version)
	}
	if cfg.API.SessionTTL != 15*time.Minute {
		t.Errorf("SessionTTL = %v, want 15m", cfg.API.SessionTTL)
	}
	if cfg.API.ShortTimeout != 3*time.Second || cfg.API.MediumTimeout != 10*time.Second || cfg.API.LongTimeout != 15*time.Second {
		t.Errorf("timeout tiers = %v/%v/%v", cfg.API.ShortTimeout, cfg.API.MediumTimeout, cfg.API.LongTimeout)
	}
	if len(cfg.Credentials.Defaults) == 0 {
		t.Error("default credential list should not be empty")
	}
	if cfg.Credentials.Defaults[0].Username != "admin" {
		t.Errorf("first default credential = %q, want admin", cfg.Credentials.Defaults[0].Username)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate, got %v", errs)
	}
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cxdash.yml")
	data := []byte(`
listen: ":9090"
api:
  version: v10.15
  ssl_verify: true
  session_ttl: 5m
credentials:
  defaults:
    - username: admin
      password: Aruba123!
    - username: manager
      password: manager
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.API.Version != "v10.15" || !cfg.API.SSLVerify {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.API.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.API.SessionTTL)
	}
	if len(cfg.Credentials.Defaults) != 2 || cfg.Credentials.Defaults[1].Username != "manager" {
		t.Errorf("Credentials = %+v", cfg.Credentials)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	errs := cfg.Validate()
	if len(errs) < 3 {
		t.Errorf("empty config should fail validation, got %v", errs)
	}
}
