// Package sbconfig loads the sandbox execution core's configuration from
// a TOML file, following the teacher framework's BurntSushi/toml-based
// loader with environment-variable overrides applied after parse.
package sbconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// BackendConfig holds the connection settings for one backend kind.
type BackendConfig struct {
	// Host is the backend server hostname. Unused by the embedded engine.
	Host string `toml:"host"`

	// Port is the backend server port. Unused by the embedded engine.
	Port int `toml:"port"`

	// Database is the default/admin database name.
	Database string `toml:"database"`

	// User is the application-level connection user.
	User string `toml:"user"`

	// Password is the application-level connection password.
	Password string `toml:"password"`

	// AdminUser is the privileged user used for isolation-object
	// creation (schema/database creation, grants). Relational backends
	// only.
	AdminUser string `toml:"admin_user"`

	// AdminPassword is the privileged user's password.
	AdminPassword string `toml:"admin_password"`

	// StudentUser is the restricted role connections run as once a
	// session's isolation object is ready. Relational backends only.
	StudentUser string `toml:"student_user"`

	// StudentPassword is the restricted role's password.
	StudentPassword string `toml:"student_password"`
}

// Config is the full sandbox execution core configuration.
type Config struct {
	// Backends holds one BackendConfig per supported backend kind, keyed
	// by "sqlite", "postgresql", "mariadb", "mongodb", "redis".
	Backends map[string]BackendConfig `toml:"backends"`

	// SessionRedisHost/Port point at the dedicated Redis instance used
	// for durable session metadata, separate from the sandboxed Redis
	// backend itself. Default: localhost:6379.
	SessionRedisHost string `toml:"session_redis_host"`
	SessionRedisPort int    `toml:"session_redis_port"`

	// MaxSessions is the hard cap on concurrently live sessions.
	// Default: 100.
	MaxSessions int `toml:"max_sessions"`

	// SessionTTL is how long a session may sit idle before it becomes
	// unreachable and eligible for teardown. Default: 15 minutes.
	SessionTTL time.Duration `toml:"session_ttl"`

	// CleanupInterval is how often the expiry ticker wakes.
	// Default: 60 seconds.
	CleanupInterval time.Duration `toml:"cleanup_interval"`

	// HealthCheckInterval is how often the pool probes backend
	// availability. Default: 60 seconds.
	HealthCheckInterval time.Duration `toml:"health_check_interval"`

	// MaxQueryTime is the ceiling every per-request timeout is clamped
	// to. Default: 30 seconds.
	MaxQueryTime time.Duration `toml:"max_query_time"`

	// MaxResultRows records the per-query row cap. Default: 1000. The
	// executor adapters do not read this field; they apply the fixed
	// executor.MaxResultRows cap (also 1000).
	MaxResultRows int `toml:"max_result_rows"`
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() Config {
	return Config{
		Backends:            map[string]BackendConfig{},
		SessionRedisHost:    "localhost",
		SessionRedisPort:    6379,
		MaxSessions:         100,
		SessionTTL:          15 * time.Minute,
		CleanupInterval:     60 * time.Second,
		HealthCheckInterval: 60 * time.Second,
		MaxQueryTime:        30 * time.Second,
		MaxResultRows:       1000,
	}
}

// Load reads a TOML file at path, starting from Defaults and overlaying
// whatever the file specifies, then applying environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("sbconfig: decode %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override a handful of
// high-traffic knobs without editing the TOML file, matching the
// teacher's config-parser override precedence (env wins over file).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SANDBOX_SESSION_REDIS_HOST"); v != "" {
		cfg.SessionRedisHost = v
	}
	if v := os.Getenv("SANDBOX_MAX_SESSIONS"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			cfg.MaxSessions = n
		}
	}
}

func parseIntEnv(v string) (int, error) {
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	return n, err
}
