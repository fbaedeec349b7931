// Package platform provides the main platform orchestration.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/arnav-platform/pkg/latency"
	"github.com/txn2/arnav-platform/pkg/planner"
	"github.com/txn2/arnav-platform/pkg/power"
	"github.com/txn2/arnav-platform/pkg/session"
)

// Config holds the complete platform configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Sessions SessionsConfig `yaml:"sessions"`
	Planner  PlannerConfig  `yaml:"planner"`
	Latency  LatencyConfig  `yaml:"latency"`
	Power    PowerConfig    `yaml:"power"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Name    string    `yaml:"name"`
	Version string    `yaml:"version"`
	Address string    `yaml:"address"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	APIKeys        APIKeyAuthConfig `yaml:"api_keys"`
	JWT            JWTAuthConfig    `yaml:"jwt"`
	AllowAnonymous bool             `yaml:"allow_anonymous"`
}

// APIKeyAuthConfig configures API key authentication.
type APIKeyAuthConfig struct {
	Enabled bool        `yaml:"enabled"`
	Keys    []APIKeyDef `yaml:"keys"`
}

// APIKeyDef defines an API key. Either Key (plaintext) or KeyHash (bcrypt)
// must be set.
type APIKeyDef struct {
	Key     string   `yaml:"key"`
	KeyHash string   `yaml:"key_hash"`
	Name    string   `yaml:"name"`
	Roles   []string `yaml:"roles"`
}

// JWTAuthConfig configures HMAC JWT authentication.
type JWTAuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Issuer     string `yaml:"issuer"`
	SigningKey string `yaml:"signing_key"` // Base64-encoded HMAC key
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// SessionsConfig configures the session registry.
type SessionsConfig struct {
	MaxActive       int           `yaml:"max_active"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PlannerConfig configures the route planner.
type PlannerConfig struct {
	CellSize      float64 `yaml:"cell_size"`
	MaxExpansions int     `yaml:"max_expansions"`
	BoundsMargin  float64 `yaml:"bounds_margin"`
}

// LatencyConfig configures the latency monitor.
type LatencyConfig struct {
	Window int `yaml:"window"`
}

// PowerConfig configures the power mode controller.
type PowerConfig struct {
	LowBatteryThreshold int `yaml:"low_battery_threshold"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// DefaultConfig returns a config with every default applied, for runs
// without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "arnav-platform"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Sessions.MaxActive == 0 {
		cfg.Sessions.MaxActive = session.DefaultMaxActive
	}
	if cfg.Sessions.IdleTimeout == 0 {
		cfg.Sessions.IdleTimeout = session.DefaultIdleThreshold
	}
	if cfg.Sessions.CleanupInterval == 0 {
		cfg.Sessions.CleanupInterval = 5 * time.Minute
	}
	if cfg.Planner.CellSize == 0 {
		cfg.Planner.CellSize = planner.DefaultCellSize
	}
	if cfg.Planner.MaxExpansions == 0 {
		cfg.Planner.MaxExpansions = planner.DefaultMaxExpansions
	}
	if cfg.Planner.BoundsMargin == 0 {
		cfg.Planner.BoundsMargin = planner.DefaultBoundsMargin
	}
	if cfg.Latency.Window == 0 {
		cfg.Latency.Window = latency.DefaultWindow
	}
	if cfg.Power.LowBatteryThreshold == 0 {
		cfg.Power.LowBatteryThreshold = power.DefaultLowBatteryThreshold
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, "server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, "server.tls.key_file is required when TLS is enabled")
		}
	}

	if c.Auth.JWT.Enabled {
		if c.Auth.JWT.Issuer == "" {
			errs = append(errs, "auth.jwt.issuer is required when JWT is enabled")
		}
		if c.Auth.JWT.SigningKey == "" {
			errs = append(errs, "auth.jwt.signing_key is required when JWT is enabled")
		}
	}

	if c.Auth.APIKeys.Enabled {
		for i, k := range c.Auth.APIKeys.Keys {
			if k.Key == "" && k.KeyHash == "" {
				errs = append(errs, fmt.Sprintf("auth.api_keys.keys[%d]: key or key_hash is required", i))
			}
		}
	}

	if c.Sessions.MaxActive < 0 {
		errs = append(errs, "sessions.max_active must not be negative")
	}
	if c.Sessions.IdleTimeout < 0 {
		errs = append(errs, "sessions.idle_timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
