// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Fixed width so stored timestamps sort lexically
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrBatchNotFound is returned when a batch id does not exist
var ErrBatchNotFound = errors.New("batch not found")

// BatchRepository defines the persistence operations for batches and their records
type BatchRepository interface {
	CreateBatch(ctx context.Context, b *entities.Batch) error
	GetBatch(ctx context.Context, id int64) (entities.Batch, error)
	ListBatches(ctx context.Context, username string) ([]entities.Batch, error)
	UpsertObservation(ctx context.Context, o *entities.Observation) error
	ListObservations(ctx context.Context, batchID int64) ([]entities.Observation, error)
	UpsertHarvest(ctx context.Context, h *entities.Harvest) error
	ListHarvests(ctx context.Context, batchID int64) ([]entities.Harvest, error)
	ListAllBatches(ctx context.Context) ([]entities.Batch, error)
	ListAllHarvests(ctx context.Context) ([]entities.Harvest, error)
	Reset(ctx context.Context) error
	Close() error
}

// SQLRepository implements BatchRepository on SQLite or Postgres
type SQLRepository struct {
	db     *sql.DB
	driver string
	DBPath string
}

// Open picks Postgres when databaseURL is a postgres DSN and SQLite at dbPath otherwise
func Open(ctx context.Context, databaseURL, dbPath string) (*SQLRepository, error) {
	if strings.HasPrefix(databaseURL, "postgres") {
		return NewPostgresRepository(ctx, databaseURL)
	}
	return NewSQLiteRepository(ctx, dbPath)
}

// NewSQLiteRepository creates and migrates a SQLite database at dbPath
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "mushroom_farming.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open(DriverSQLite, dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	return newSQLRepository(ctx, db, DriverSQLite, dbPath)
}

// NewPostgresRepository connects to Postgres through pgx and migrates the schema
func NewPostgresRepository(ctx context.Context, dsn string) (*SQLRepository, error) {
	log.Printf("Connecting to postgres database")
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return newSQLRepository(ctx, db, DriverPostgres, "")
}

func newSQLRepository(ctx context.Context, db *sql.DB, driver, path string) (*SQLRepository, error) {
	r := &SQLRepository{db: db, driver: driver, DBPath: path}
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c != '?' {
			b.WriteRune(c)
			continue
		}
		n++
		b.WriteString("$" + strconv.Itoa(n))
	}
	return b.String()
}

func now() string { return time.Now().UTC().Format(timestampLayout) }

func formatDate(t time.Time) string { return t.Format(entities.DateLayout) }

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatDate(t)
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return entities.Float(nf.Float64)
}

func nullCO2(l entities.CO2Level) any {
	if !l.Recorded() {
		return nil
	}
	return l.String()
}

const batchColumns = `id, username, substrate_type, substrate_moisture_percent, spawn_rate_percent,
	start_date, created_at, updated_at`

// CreateBatch inserts b and fills in its id and timestamps
func (r *SQLRepository) CreateBatch(ctx context.Context, b *entities.Batch) error {
	if b.Username == "" {
		b.Username = entities.DefaultUsername
	}
	ts := now()
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO batches(username, substrate_type, substrate_moisture_percent, spawn_rate_percent,
			start_date, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		b.Username, b.SubstrateType, b.SubstrateMoisturePercent, b.SpawnRatePercent,
		formatDate(b.StartDate), ts, ts,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	b.CreatedAt, _ = time.Parse(timestampLayout, ts)
	b.UpdatedAt = b.CreatedAt
	return nil
}

// GetBatch returns the batch with the given id or ErrBatchNotFound
func (r *SQLRepository) GetBatch(ctx context.Context, id int64) (entities.Batch, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+batchColumns+` FROM batches WHERE id = ?`), id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Batch{}, fmt.Errorf("batch %d: %w", id, ErrBatchNotFound)
	}
	if err != nil {
		return entities.Batch{}, fmt.Errorf("failed to get batch %d: %w", id, err)
	}
	return b, nil
}

// ListBatches returns batches newest first, optionally only those owned by username
func (r *SQLRepository) ListBatches(ctx context.Context, username string) ([]entities.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches`
	var args []any
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.queryBatches(ctx, query, args...)
}

// ListAllBatches returns every batch in id order
func (r *SQLRepository) ListAllBatches(ctx context.Context) ([]entities.Batch, error) {
	return r.queryBatches(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY id`)
}

func (r *SQLRepository) queryBatches(ctx context.Context, query string, args ...any) ([]entities.Batch, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []entities.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (entities.Batch, error) {
	var (
		b                           entities.Batch
		username                    sql.NullString
		startDate, created, updated string
	)
	err := s.Scan(&b.ID, &username, &b.SubstrateType, &b.SubstrateMoisturePercent, &b.SpawnRatePercent,
		&startDate, &created, &updated)
	if err != nil {
		return b, err
	}
	b.Username = entities.DefaultUsername
	if username.Valid && username.String != "" {
		b.Username = username.String
	}
	if b.StartDate, err = time.Parse(entities.DateLayout, startDate); err != nil {
		return b, fmt.Errorf("invalid start_date %q: %w", startDate, err)
	}
	b.CreatedAt, _ = time.Parse(timestampLayout, created)
	b.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return b, nil
}

// UpsertObservation stores o keyed by (batch, date). Readings left empty in o
// keep the values already stored for that day; o is updated to the stored row.
func (r *SQLRepository) UpsertObservation(ctx context.Context, o *entities.Observation) error {
	var (
		temp, hum, light sql.NullFloat64
		co2              sql.NullString
	)
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO observations(batch_id, date, temperature_c, humidity_percent, co2_level, light_hours)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id, date) DO UPDATE SET
		temperature_c=COALESCE(excluded.temperature_c, observations.temperature_c),
		humidity_percent=COALESCE(excluded.humidity_percent, observations.humidity_percent),
		co2_level=COALESCE(excluded.co2_level, observations.co2_level),
		light_hours=COALESCE(excluded.light_hours, observations.light_hours)
		RETURNING id, temperature_c, humidity_percent, co2_level, light_hours`),
		o.BatchID, formatDate(o.Date), o.TemperatureC, o.HumidityPercent, nullCO2(o.CO2), o.LightHours,
	).Scan(&o.ID, &temp, &hum, &co2, &light)
	if err != nil {
		return fmt.Errorf("failed to upsert observation for batch %d on %s: %w",
			o.BatchID, formatDate(o.Date), err)
	}
	o.TemperatureC, o.HumidityPercent, o.LightHours = nullFloat(temp), nullFloat(hum), nullFloat(light)
	o.CO2, err = entities.ParseCO2Level(co2.String)
	return err
}

// ListObservations returns the observations of a batch by date ascending
func (r *SQLRepository) ListObservations(ctx context.Context, batchID int64) ([]entities.Observation, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, batch_id, date, temperature_c, humidity_percent, co2_level, light_hours
		FROM observations
		WHERE batch_id = ?
		ORDER BY date ASC`), batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var result []entities.Observation
	for rows.Next() {
		var (
			o                entities.Observation
			date             string
			temp, hum, light sql.NullFloat64
			co2              sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.BatchID, &date, &temp, &hum, &co2, &light); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if o.Date, err = time.Parse(entities.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid observation date %q: %w", date, err)
		}
		if o.CO2, err = entities.ParseCO2Level(co2.String); err != nil {
			log.Printf("Ignoring CO2 level of observation %d: %v", o.ID, err)
		}
		o.TemperatureC, o.HumidityPercent, o.LightHours = nullFloat(temp), nullFloat(hum), nullFloat(light)
		result = append(result, o)
	}
	return result, rows.Err()
}

// UpsertHarvest stores h keyed by (batch, flush number). Empty optional fields
// keep the stored values; h is updated to the stored row.
func (r *SQLRepository) UpsertHarvest(ctx context.Context, h *entities.Harvest) error {
	var (
		total sql.NullFloat64
		date  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO harvests(batch_id, flush_number, flush_yield_kg, total_batch_yield_kg, date)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(batch_id, flush_number) DO UPDATE SET
		flush_yield_kg=excluded.flush_yield_kg,
		total_batch_yield_kg=COALESCE(excluded.total_batch_yield_kg, harvests.total_batch_yield_kg),
		date=COALESCE(excluded.date, harvests.date)
		RETURNING id, total_batch_yield_kg, date`),
		h.BatchID, h.FlushNumber, h.FlushYieldKg, h.TotalBatchYieldKg, nullDate(h.Date),
	).Scan(&h.ID, &total, &date)
	if err != nil {
		return fmt.Errorf("failed to upsert flush %d for batch %d: %w", h.FlushNumber, h.BatchID, err)
	}
	h.TotalBatchYieldKg = nullFloat(total)
	h.Date = parseOptionalDate(date)
	return nil
}

// ListHarvests returns the harvests of a batch by flush number
func (r *SQLRepository) ListHarvests(ctx context.Context, batchID int64) ([]entities.Harvest, error) {
	return r.queryHarvests(ctx, `
		SELECT id, batch_id, flush_number, flush_yield_kg, total_batch_yield_kg, date
		FROM harvests WHERE batch_id = ? ORDER BY flush_number`, batchID)
}

// ListAllHarvests returns every harvest, grouped by batch
func (r *SQLRepository) ListAllHarvests(ctx context.Context) ([]entities.Harvest, error) {
	return r.queryHarvests(ctx, `
		SELECT id, batch_id, flush_number, flush_yield_kg, total_batch_yield_kg, date
		FROM harvests ORDER BY batch_id, flush_number`)
}

func (r *SQLRepository) queryHarvests(ctx context.Context, query string, args ...any) ([]entities.Harvest, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvests: %w", err)
	}
	defer rows.Close()

	var result []entities.Harvest
	for rows.Next() {
		var (
			h     entities.Harvest
			total sql.NullFloat64
			date  sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.BatchID, &h.FlushNumber, &h.FlushYieldKg, &total, &date); err != nil {
			return nil, fmt.Errorf("failed to scan harvest: %w", err)
		}
		h.TotalBatchYieldKg = nullFloat(total)
		h.Date = parseOptionalDate(date)
		result = append(result, h)
	}
	return result, rows.Err()
}

func parseOptionalDate(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, err := time.Parse(entities.DateLayout, ns.String)
	if err != nil {
		log.Printf("Ignoring invalid date %q: %v", ns.String, err)
		return time.Time{}
	}
	return t
}

// Reset deletes every batch, observation and harvest
func (r *SQLRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, table := range []string{"harvests", "observations", "batches"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
