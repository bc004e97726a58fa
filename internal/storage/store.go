// Package storage persists advertisements and discovery history.
// Two backends are provided: SQLite (default, zero-config, pure Go via
// modernc) and PostgreSQL for shared deployments. Advertisements are
// persisted so the catalog survives a restart; discovery records are an
// append-mostly audit trail of what was asked and what matched.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/actiondex/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store is the persistence interface consumed by the discovery service and
// the serve command. Implementations must be safe for concurrent use.
type Store interface {
	// Advertisement persistence, used to rehydrate the catalog on startup.
	SaveAdvertisement(ctx context.Context, ad *domain.Advertisement) error
	DeleteAdvertisement(ctx context.Context, name string) error
	DeleteAgentAdvertisements(ctx context.Context, agentID string) error
	ListAdvertisements(ctx context.Context) ([]domain.Advertisement, error)

	// Discovery history.
	SaveDiscovery(ctx context.Context, rec *domain.DiscoveryRecord) error
	ListDiscoveries(ctx context.Context, limit int) ([]domain.DiscoveryRecord, error)

	// Lifecycle.
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the backend name ("sqlite", "postgres", "memory").
	Driver() string
}

// Config selects and configures the backend.
type Config struct {
	Driver   string          `json:"driver,omitempty" yaml:"driver,omitempty"` // Default: "sqlite".
	SQLite   *SQLiteConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`                 // Database file path.
	JournalMode string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"` // Default: "wal".
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`
	MaxOpenConns     int    `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`           // Default: 25.
	MaxIdleConns     int    `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`           // Default: 5.
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s,omitempty" yaml:"conn_max_lifetime_s,omitempty"` // Default: 1800.
}

// DriverName returns the configured driver, defaulting to SQLite.
func (c *Config) DriverName() string {
	if c != nil && c.Driver != "" {
		return c.Driver
	}
	return DriverSQLite
}

// Open creates a Store for the configured driver.
func Open(cfg *Config, logger *slog.Logger) (Store, error) {
	switch cfg.DriverName() {
	case DriverSQLite:
		return openSQLite(cfg.SQLite, logger)
	case DriverPostgres:
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return openPostgres(cfg.Postgres, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
