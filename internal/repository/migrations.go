package repository

import (
	"context"
	"fmt"
	"log"
)

// migration is one schema version; statements run in a single transaction
type migration struct {
	version    int
	name       string
	statements func(driver string) []string
}

func idColumn(driver string) string {
	if driver == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

var migrations = []migration{
	{
		version: 1,
		name:    "create batches, observations and harvests",
		statements: func(driver string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS batches (
					id ` + idColumn(driver) + `,
					substrate_type TEXT NOT NULL,
					substrate_moisture_percent DOUBLE PRECISION NOT NULL,
					spawn_rate_percent DOUBLE PRECISION NOT NULL,
					start_date TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS observations (
					id ` + idColumn(driver) + `,
					batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
					date TEXT NOT NULL,
					temperature_c DOUBLE PRECISION,
					humidity_percent DOUBLE PRECISION,
					co2_level TEXT,
					light_hours DOUBLE PRECISION,
					UNIQUE(batch_id, date)
				)`,
				`CREATE TABLE IF NOT EXISTS harvests (
					id ` + idColumn(driver) + `,
					batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
					flush_number INTEGER NOT NULL,
					flush_yield_kg DOUBLE PRECISION NOT NULL,
					total_batch_yield_kg DOUBLE PRECISION,
					date TEXT,
					UNIQUE(batch_id, flush_number)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_batch ON observations(batch_id)`,
				`CREATE INDEX IF NOT EXISTS idx_harvests_batch ON harvests(batch_id)`,
			}
		},
	},
	{
		version: 2,
		name:    "add batch owner",
		statements: func(string) []string {
			return []string{
				`ALTER TABLE batches ADD COLUMN username TEXT`,
				`UPDATE batches SET username = 'unknown' WHERE username IS NULL OR username = ''`,
				`CREATE INDEX IF NOT EXISTS idx_batches_username ON batches(username)`,
			}
		},
	},
}

// SchemaVersion returns the highest applied migration, 0 for an empty database
func (r *SQLRepository) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every migration newer than the recorded schema version
func (r *SQLRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := r.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return err
		}
		log.Printf("Applied migration %d: %s", m.version, m.name)
	}
	return nil
}

func (r *SQLRepository) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	for _, stmt := range m.statements(r.driver) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO schema_version(version, applied_at) VALUES(?, ?)`),
		m.version, now()); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}
