package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jkaninda/actiondex/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// gormStore implements Store over a GORM connection. The same code serves
// both the SQLite and PostgreSQL drivers; only Open differs.
type gormStore struct {
	db     *gorm.DB
	driver string
	logger *slog.Logger
}

func openSQLite(cfg *SQLiteConfig, slogger *slog.Logger) (Store, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "wal"
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.Path, journalMode)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(slogger))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// WAL allows concurrent reads, but writes remain single-file; one
	// connection avoids SQLITE_BUSY churn.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := &gormStore{db: db, driver: DriverSQLite, logger: slogger}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	slogger.Info("sqlite storage opened", slog.String("path", cfg.Path))
	return store, nil
}

func openPostgres(cfg *PostgresConfig, slogger *slog.Logger) (Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), gormConfig(slogger))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(intOrDefault(cfg.MaxOpenConns, 25))
	sqlDB.SetMaxIdleConns(intOrDefault(cfg.MaxIdleConns, 5))
	sqlDB.SetConnMaxLifetime(time.Duration(intOrDefault(cfg.ConnMaxLifetimeS, 1800)) * time.Second)

	store := &gormStore{db: db, driver: DriverPostgres, logger: slogger}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	slogger.Info("postgres storage opened",
		slog.Int("max_open_conns", intOrDefault(cfg.MaxOpenConns, 25)),
	)
	return store, nil
}

func gormConfig(slogger *slog.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(
			slogAdapter{slogger},
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func intOrDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *gormStore) migrate() error {
	if err := s.db.AutoMigrate(&AdvertisementModel{}, &DiscoveryModel{}); err != nil {
		return fmt.Errorf("auto-migrating: %w", err)
	}
	return nil
}

func (s *gormStore) SaveAdvertisement(ctx context.Context, ad *domain.Advertisement) error {
	model := toAdvertisementModel(ad)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("saving advertisement %q: %w", ad.Name, err)
	}
	return nil
}

func (s *gormStore) DeleteAdvertisement(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Delete(&AdvertisementModel{}, "name = ?", name)
	if res.Error != nil {
		return fmt.Errorf("deleting advertisement %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("advertisement %q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *gormStore) DeleteAgentAdvertisements(ctx context.Context, agentID string) error {
	err := s.db.WithContext(ctx).Delete(&AdvertisementModel{}, "agent_id = ?", agentID).Error
	if err != nil {
		return fmt.Errorf("deleting advertisements for agent %q: %w", agentID, err)
	}
	return nil
}

func (s *gormStore) ListAdvertisements(ctx context.Context) ([]domain.Advertisement, error) {
	var models []AdvertisementModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing advertisements: %w", err)
	}
	ads := make([]domain.Advertisement, len(models))
	for i := range models {
		ads[i] = toAdvertisementDomain(&models[i])
	}
	return ads, nil
}

func (s *gormStore) SaveDiscovery(ctx context.Context, rec *domain.DiscoveryRecord) error {
	model := toDiscoveryModel(rec)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("saving discovery record: %w", err)
	}
	return nil
}

func (s *gormStore) ListDiscoveries(ctx context.Context, limit int) ([]domain.DiscoveryRecord, error) {
	var models []DiscoveryModel
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing discovery records: %w", err)
	}
	records := make([]domain.DiscoveryRecord, len(models))
	for i := range models {
		records[i] = toDiscoveryDomain(&models[i])
	}
	return records, nil
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *gormStore) Driver() string { return s.driver }

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
