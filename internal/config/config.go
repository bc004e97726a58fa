// Package config handles loading and validating Actiondex configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for Actiondex.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.actiondex/data. Override: ACTIONDEX_DATA_DIR env var.
	Server        ServerConfig         `json:"server" yaml:"server"`
	WebSocket     *WebSocketConfig     `json:"websocket,omitempty" yaml:"websocket,omitempty"` // nil = WebSocket agent gateway disabled
	Ranking       RankingConfig        `json:"ranking" yaml:"ranking"`
	Catalog       CatalogConfig        `json:"catalog" yaml:"catalog"`
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`             // nil = SQLite default (derived from data dir)
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Disabled            bool            `json:"disabled,omitempty" yaml:"disabled,omitempty"` // Disable the HTTP API entirely (agent gateway only).
	ListenAddr          string          `json:"listen_addr" yaml:"listen_addr"`               // Default: ":8080".
	EnableDocs          bool            `json:"enable_docs" yaml:"enable_docs"`
	MaxRequestSizeBytes int64           `json:"max_request_size_bytes" yaml:"max_request_size_bytes"` // Default: 1 MiB.
	APIKeys             []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`         // Override: ACTIONDEX_API_KEYS env var (comma-separated). Empty = auth disabled.
	RateLimit           RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// Addr returns the listen address with a default of ":8080".
func (s *ServerConfig) Addr() string {
	if s != nil && s.ListenAddr != "" {
		return s.ListenAddr
	}
	return ":8080"
}

// MaxRequestSize returns the request size cap with a default of 1 MiB.
func (s *ServerConfig) MaxRequestSize() int64 {
	if s != nil && s.MaxRequestSizeBytes > 0 {
		return s.MaxRequestSizeBytes
	}
	return 1 << 20
}

// RateLimitConfig configures per-client rate limiting for the HTTP API.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"` // 0 = rate limiting disabled.
	BurstSize         int `json:"burst_size" yaml:"burst_size"`                   // Default: requests_per_minute.
}

// WebSocketConfig configures the WebSocket gateway for agent connections.
type WebSocketConfig struct {
	Enabled                  bool   `json:"enabled" yaml:"enabled"`
	Path                     string `json:"path" yaml:"path"`                                             // URL path for the WebSocket endpoint. Default: "/ws/agents".
	ListenAddr               string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`           // Standalone listener address, used only when the HTTP server is disabled. Default: ":8081".
	AgentToken               string `json:"agent_token" yaml:"agent_token"`                               // Shared token for agent authentication. Override: ACTIONDEX_AGENT_TOKEN env var.
	HeartbeatIntervalSeconds int    `json:"heartbeat_interval_seconds" yaml:"heartbeat_interval_seconds"` // Default: 30.
	DefaultTTLSeconds        int    `json:"default_ttl_seconds" yaml:"default_ttl_seconds"`               // Advertisement TTL when an agent omits one. Default: 300.
}

// WSPath returns the WebSocket path with a default of "/ws/agents".
func (w *WebSocketConfig) WSPath() string {
	if w != nil && w.Path != "" {
		return w.Path
	}
	return "/ws/agents"
}

// WSHeartbeatInterval returns the heartbeat interval with a default of 30s.
func (w *WebSocketConfig) WSHeartbeatInterval() time.Duration {
	if w != nil && w.HeartbeatIntervalSeconds > 0 {
		return time.Duration(w.HeartbeatIntervalSeconds) * time.Second
	}
	return 30 * time.Second
}

// DefaultTTL returns the fallback advertisement TTL with a default of 5m.
func (w *WebSocketConfig) DefaultTTL() time.Duration {
	if w != nil && w.DefaultTTLSeconds > 0 {
		return time.Duration(w.DefaultTTLSeconds) * time.Second
	}
	return 5 * time.Minute
}

// RankingConfig tunes the matching engine defaults used by the discovery
// endpoints. Per-request overrides take precedence.
type RankingConfig struct {
	MinScore   float64 `json:"min_score" yaml:"min_score"`     // Default: 0.3.
	MaxResults int     `json:"max_results" yaml:"max_results"` // Default: 50.
}

// EffectiveMinScore returns the configured score floor with a default of 0.3.
func (r *RankingConfig) EffectiveMinScore() float64 {
	if r != nil && r.MinScore > 0 {
		return r.MinScore
	}
	return 0.3
}

// EffectiveMaxResults returns the configured shortlist cap with a default of 50.
func (r *RankingConfig) EffectiveMaxResults() int {
	if r != nil && r.MaxResults > 0 {
		return r.MaxResults
	}
	return 50
}

// CatalogConfig configures in-memory catalog maintenance.
type CatalogConfig struct {
	PruneIntervalSeconds int `json:"prune_interval_seconds" yaml:"prune_interval_seconds"` // Default: 60. Negative = pruning disabled.
}

// PruneInterval returns the expiry sweep interval with a default of 1m.
// Returns 0 when pruning is disabled.
func (c *CatalogConfig) PruneInterval() time.Duration {
	if c != nil && c.PruneIntervalSeconds < 0 {
		return 0
	}
	if c != nil && c.PruneIntervalSeconds > 0 {
		return time.Duration(c.PruneIntervalSeconds) * time.Second
	}
	return time.Minute
}

// StorageConfig configures the persistence backend.
// When nil, defaults to SQLite with the database path derived from the data directory.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default), "postgres", or "memory".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: derived from data dir.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // "wal" (default), "delete", "truncate", etc.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"` // Override: ACTIONDEX_DB_DSN env var.
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// ObservabilityConfig configures metrics, tracing, and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the exposition path with a default of "/metrics".
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "actiondex"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.actiondex/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/actiondex.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".actiondex", "config.yaml")
}

// Default returns a Config with all defaults applied, used when no config
// file is provided.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. Secrets can be set in the config file or overridden by
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	// Expand ~ in config path.
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides. Env vars take precedence
// over config file values.
func (c *Config) applyEnv() {
	if envDD := os.Getenv("ACTIONDEX_DATA_DIR"); envDD != "" {
		c.DataDir = envDD
	}
	if envKeys := os.Getenv("ACTIONDEX_API_KEYS"); envKeys != "" {
		var keys []string
		for _, k := range strings.Split(envKeys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Server.APIKeys = keys
	}
	if envTok := os.Getenv("ACTIONDEX_AGENT_TOKEN"); envTok != "" {
		if c.WebSocket == nil {
			c.WebSocket = &WebSocketConfig{Enabled: true}
		}
		c.WebSocket.AgentToken = envTok
	}
	if envDSN := os.Getenv("ACTIONDEX_DB_DSN"); envDSN != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = envDSN
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".actiondex", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the default SQLite database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.ResolvedDataDir(), "actiondex.db")
}

// StorageDriverName returns the effective storage driver name.
func (c *Config) StorageDriverName() string {
	if c.Storage != nil {
		return c.Storage.StorageDriver()
	}
	return "sqlite"
}

func (c *Config) validate() error {
	if c.Ranking.MinScore < 0 || c.Ranking.MinScore > 1 {
		return fmt.Errorf("ranking.min_score must be between 0 and 1")
	}
	if c.Ranking.MaxResults < 0 {
		return fmt.Errorf("ranking.max_results must not be negative")
	}
	if c.Server.MaxRequestSizeBytes < 0 {
		return fmt.Errorf("server.max_request_size_bytes must not be negative")
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must not be negative")
	}
	if c.Storage != nil && c.Storage.Driver != "" {
		switch c.Storage.Driver {
		case "sqlite", "postgres", "memory":
			// valid
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite, postgres, or memory)", c.Storage.Driver)
		}
	}
	if c.Storage != nil && c.Storage.Driver == "postgres" {
		if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver (set ACTIONDEX_DB_DSN env var)")
		}
	}
	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		t := c.Observability.Tracing
		if t.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch t.Protocol {
		case "", "grpc", "http":
			// valid
		default:
			return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", t.Protocol)
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			return fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1")
		}
	}
	return nil
}
