// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CredentialPair is one username/password combination tried during device
// authentication.
type CredentialPair struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// APIConfig controls how the dashboard talks to switch REST APIs.
type APIConfig struct {
	// Version is the AOS-CX REST API version segment, e.g. "v10.09".
	Version string `mapstructure:"version"`

	// SSLVerify toggles TLS certificate validation toward devices.
	// Lab switches commonly run self-signed certificates.
	SSLVerify bool `mapstructure:"ssl_verify"`

	// Tiered call timeouts. Short covers best-effort probes (PoE, fans,
	// LLDP), medium covers primary system/VLAN calls, long covers bulk
	// interface listings.
	ShortTimeout  time.Duration `mapstructure:"short_timeout"`
	MediumTimeout time.Duration `mapstructure:"medium_timeout"`
	LongTimeout   time.Duration `mapstructure:"long_timeout"`

	// SessionTTL is the fixed lifetime of a cached device session.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// CredentialConfig holds the default credential list tried, in order, when a
// switch has no explicit or saved credentials.
type CredentialConfig struct {
	Defaults []CredentialPair `mapstructure:"defaults"`
}

// CacheConfig holds per-feature cache TTLs.
type CacheConfig struct {
	ListingTTL    time.Duration `mapstructure:"listing_ttl"`
	OverviewTTL   time.Duration `mapstructure:"overview_ttl"`
	CapabilityTTL time.Duration `mapstructure:"capability_ttl"`
}

// AuditConfig controls API call logging.
type AuditConfig struct {
	// LogPath, when set, enables the JSONL file logger.
	LogPath    string `mapstructure:"log_path"`
	MaxHistory int    `mapstructure:"max_history"`
}

// CentralConfig holds Aruba Central API access. Central features stay off
// until ClientID is set.
type CentralConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CustomerID   string `mapstructure:"customer_id"`
}

// Enabled reports whether Central access is configured.
func (c CentralConfig) Enabled() bool {
	return c.ClientID != "" && c.BaseURL != ""
}

// Config is the root application configuration.
type Config struct {
	Listen      string           `mapstructure:"listen"`
	LogLevel    string           `mapstructure:"log_level"`
	SeedFile    string           `mapstructure:"seed_file"`
	BackupDir   string           `mapstructure:"backup_dir"`
	API         APIConfig        `mapstructure:"api"`
	Credentials CredentialConfig `mapstructure:"credentials"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Audit       AuditConfig      `mapstructure:"audit"`
	Central     CentralConfig    `mapstructure:"central"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("backup_dir", "backups")
	v.SetDefault("api.version", "v10.09")
	v.SetDefault("api.ssl_verify", false)
	v.SetDefault("api.short_timeout", 3*time.Second)
	v.SetDefault("api.medium_timeout", 10*time.Second)
	v.SetDefault("api.long_timeout", 15*time.Second)
	v.SetDefault("api.session_ttl", 15*time.Minute)
	v.SetDefault("cache.listing_ttl", 300*time.Second)
	v.SetDefault("cache.overview_ttl", 60*time.Second)
	v.SetDefault("cache.capability_ttl", 60*time.Second)
	v.SetDefault("audit.max_history", 100)
}

// Load reads configuration from an optional YAML file (cxdash.yml in the
// working directory or /etc/cxdash) overlaid with CXDASH_* environment
// variables.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from an explicit file path. An empty path
// falls back to the default search locations; a missing default file is not
// an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("cxdash")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cxdash")
		v.SetConfigName("cxdash")
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Credentials.Defaults) == 0 {
		// Factory credentials common across AOS-CX families, tried in order.
		cfg.Credentials.Defaults = []CredentialPair{
			{Username: "admin", Password: ""},
			{Username: "admin", Password: "admin"},
		}
	}

	return &cfg, nil
}

// Validate returns a list of configuration problems, empty when valid.
func (c *Config) Validate() []string {
	var errs []string
	if c.Listen == "" {
		errs = append(errs, "listen address is required")
	}
	if !strings.HasPrefix(c.API.Version, "v") {
		errs = append(errs, "api.version must look like v10.09")
	}
	if c.API.SessionTTL <= 0 {
		errs = append(errs, "api.session_ttl must be positive")
	}
	if len(c.Credentials.Defaults) == 0 {
		errs = append(errs, "credentials.defaults must contain at least one pair")
	}
	if c.Central.ClientID != "" && c.Central.BaseURL == "" {
		errs = append(errs, "central.base_url is required when central.client_id is set")
	}
	return errs
}
