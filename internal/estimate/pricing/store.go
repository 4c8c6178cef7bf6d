package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ConfigStore persists the tariff in a single-row table and keeps an
// invalidation-aware in-memory copy for read efficiency. Reads are
// read-mostly; the memory copy is dropped on every successful update and
// on an explicit Invalidate.
//
// The SQL uses the MySQL dialect (`?` placeholders, MySQL DDL). Running
// with DB_DRIVER=pgx requires a store variant with $N placeholders; the
// supported production database is MySQL.
type ConfigStore struct {
	db *sql.DB

	mu     sync.RWMutex
	cached *Config
}

// NewConfigStore constructs a store over the given database handle.
func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// EnsureSchema creates the tariff table and seeds the default tariff when
// the row is missing. Called once at bootstrap.
func (s *ConfigStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS estimate_pricing_config (
		id BIGINT PRIMARY KEY,
		base_fee DOUBLE PRECISION NOT NULL,
		short_distance_limit_km DOUBLE PRECISION NOT NULL,
		medium_distance_limit_km DOUBLE PRECISION NOT NULL,
		short_distance_rate DOUBLE PRECISION NOT NULL,
		medium_distance_rate DOUBLE PRECISION NOT NULL,
		long_distance_rate DOUBLE PRECISION NOT NULL,
		night_multiplier DOUBLE PRECISION NOT NULL,
		weekend_multiplier DOUBLE PRECISION NOT NULL,
		sedan_multiplier DOUBLE PRECISION NOT NULL,
		suv_multiplier DOUBLE PRECISION NOT NULL,
		minibus_multiplier DOUBLE PRECISION NOT NULL,
		luxury_multiplier DOUBLE PRECISION NOT NULL,
		broken_vehicle_multiplier DOUBLE PRECISION NOT NULL,
		accident_multiplier DOUBLE PRECISION NOT NULL,
		ditch_multiplier DOUBLE PRECISION NOT NULL,
		has_load_multiplier DOUBLE PRECISION NOT NULL,
		urgent_multiplier DOUBLE PRECISION NOT NULL,
		price_flexibility_percent DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		updated_by VARCHAR(128) NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("pricing: ensure schema: %w", err)
	}

	_, err = s.Get(ctx)
	return err
}

// Get returns the current tariff, reading through the memory cache.
func (s *ConfigStore) Get(ctx context.Context) (Config, error) {
	s.mu.RLock()
	if s.cached != nil {
		cfg := *s.cached
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	cfg, err := s.load(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		cfg, err = s.seed(ctx)
	}
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	s.cached = &cfg
	s.mu.Unlock()
	return cfg, nil
}

// Update validates and persists a full tariff, stamping updated_at and
// updated_by, then drops the memory cache so the next Get re-reads.
func (s *ConfigStore) Update(ctx context.Context, cfg Config, updatedBy string) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if updatedBy == "" {
		return Config{}, fmt.Errorf("%w: updated_by is required", ErrInvalidConfig)
	}
	cfg.ID = 1
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = updatedBy

	_, err := s.db.ExecContext(ctx, `UPDATE estimate_pricing_config SET
		base_fee = ?, short_distance_limit_km = ?, medium_distance_limit_km = ?,
		short_distance_rate = ?, medium_distance_rate = ?, long_distance_rate = ?,
		night_multiplier = ?, weekend_multiplier = ?,
		sedan_multiplier = ?, suv_multiplier = ?, minibus_multiplier = ?,
		luxury_multiplier = ?, broken_vehicle_multiplier = ?, accident_multiplier = ?,
		ditch_multiplier = ?, has_load_multiplier = ?, urgent_multiplier = ?,
		price_flexibility_percent = ?, updated_at = ?, updated_by = ?
		WHERE id = ?`,
		cfg.BaseFee, cfg.ShortDistanceLimitKm, cfg.MediumDistanceLimitKm,
		cfg.ShortDistanceRate, cfg.MediumDistanceRate, cfg.LongDistanceRate,
		cfg.NightMultiplier, cfg.WeekendMultiplier,
		cfg.SedanMultiplier, cfg.SUVMultiplier, cfg.MinibusMultiplier,
		cfg.LuxuryMultiplier, cfg.BrokenVehicleMultiplier, cfg.AccidentMultiplier,
		cfg.DitchMultiplier, cfg.HasLoadMultiplier, cfg.UrgentMultiplier,
		cfg.PriceFlexibilityPercent, cfg.UpdatedAt, cfg.UpdatedBy,
		cfg.ID)
	if err != nil {
		return Config{}, fmt.Errorf("pricing: update config: %w", err)
	}

	s.Invalidate()
	return cfg, nil
}

// Invalidate drops the in-memory tariff copy; the next Get re-reads from
// the backing store.
func (s *ConfigStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *ConfigStore) load(ctx context.Context) (Config, error) {
	var cfg Config
	err := s.db.QueryRowContext(ctx, `SELECT id, base_fee,
		short_distance_limit_km, medium_distance_limit_km,
		short_distance_rate, medium_distance_rate, long_distance_rate,
		night_multiplier, weekend_multiplier,
		sedan_multiplier, suv_multiplier, minibus_multiplier,
		luxury_multiplier, broken_vehicle_multiplier, accident_multiplier,
		ditch_multiplier, has_load_multiplier, urgent_multiplier,
		price_flexibility_percent, updated_at, updated_by
		FROM estimate_pricing_config WHERE id = 1`).Scan(
		&cfg.ID, &cfg.BaseFee,
		&cfg.ShortDistanceLimitKm, &cfg.MediumDistanceLimitKm,
		&cfg.ShortDistanceRate, &cfg.MediumDistanceRate, &cfg.LongDistanceRate,
		&cfg.NightMultiplier, &cfg.WeekendMultiplier,
		&cfg.SedanMultiplier, &cfg.SUVMultiplier, &cfg.MinibusMultiplier,
		&cfg.LuxuryMultiplier, &cfg.BrokenVehicleMultiplier, &cfg.AccidentMultiplier,
		&cfg.DitchMultiplier, &cfg.HasLoadMultiplier, &cfg.UrgentMultiplier,
		&cfg.PriceFlexibilityPercent, &cfg.UpdatedAt, &cfg.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("pricing: load config: %w", err)
	}
	return cfg, nil
}

func (s *ConfigStore) seed(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = "system"
	_, err := s.db.ExecContext(ctx, `INSERT INTO estimate_pricing_config (
		id, base_fee, short_distance_limit_km, medium_distance_limit_km,
		short_distance_rate, medium_distance_rate, long_distance_rate,
		night_multiplier, weekend_multiplier,
		sedan_multiplier, suv_multiplier, minibus_multiplier,
		luxury_multiplier, broken_vehicle_multiplier, accident_multiplier,
		ditch_multiplier, has_load_multiplier, urgent_multiplier,
		price_flexibility_percent, updated_at, updated_by
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		cfg.ID, cfg.BaseFee, cfg.ShortDistanceLimitKm, cfg.MediumDistanceLimitKm,
		cfg.ShortDistanceRate, cfg.MediumDistanceRate, cfg.LongDistanceRate,
		cfg.NightMultiplier, cfg.WeekendMultiplier,
		cfg.SedanMultiplier, cfg.SUVMultiplier, cfg.MinibusMultiplier,
		cfg.LuxuryMultiplier, cfg.BrokenVehicleMultiplier, cfg.AccidentMultiplier,
		cfg.DitchMultiplier, cfg.HasLoadMultiplier, cfg.UrgentMultiplier,
		cfg.PriceFlexibilityPercent, cfg.UpdatedAt, cfg.UpdatedBy)
	if err != nil {
		return Config{}, fmt.Errorf("pricing: seed config: %w", err)
	}
	return cfg, nil
}
