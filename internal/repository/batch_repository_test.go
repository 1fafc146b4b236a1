package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/google/go-cmp/cmp"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createBatch(t *testing.T, repo *SQLRepository, username, substrate string) entities.Batch {
	t.Helper()
	b := entities.Batch{
		Username:                 username,
		SubstrateType:            substrate,
		SubstrateMoisturePercent: 65,
		SpawnRatePercent:         5,
		StartDate:                time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateBatch(context.Background(), &b); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	return b
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first := createBatch(t, repo, "Dhanush", "Straw")
	second := createBatch(t, repo, "", "Sawdust")
	if first.ID == 0 || second.ID == first.ID {
		t.Fatalf("unexpected ids %d and %d", first.ID, second.ID)
	}
	if second.Username != entities.DefaultUsername {
		t.Errorf("username = %q, want %q", second.Username, entities.DefaultUsername)
	}

	got, err := repo.GetBatch(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.SubstrateType != "Straw" || got.Username != "Dhanush" || !got.StartDate.Equal(first.StartDate) {
		t.Errorf("GetBatch returned %+v", got)
	}

	if _, err := repo.GetBatch(ctx, 999); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("GetBatch(999) error = %v, want ErrBatchNotFound", err)
	}

	all, err := repo.ListBatches(ctx, "")
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Errorf("expected newest batch first, got %+v", all)
	}

	mine, err := repo.ListBatches(ctx, "Dhanush")
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Errorf("username filter returned %+v", mine)
	}
}

func TestUpsertObservationKeepsMissingReadings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	b := createBatch(t, repo, "Rakesh", "Sawdust")
	day := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)

	o := entities.Observation{
		BatchID:         b.ID,
		Date:            day,
		TemperatureC:    entities.Float(24.5),
		HumidityPercent: entities.Float(82),
		CO2:             entities.CO2Medium,
	}
	if err := repo.UpsertObservation(ctx, &o); err != nil {
		t.Fatalf("UpsertObservation: %v", err)
	}

	update := entities.Observation{BatchID: b.ID, Date: day, TemperatureC: entities.Float(25), LightHours: entities.Float(12)}
	if err := repo.UpsertObservation(ctx, &update); err != nil {
		t.Fatalf("UpsertObservation update: %v", err)
	}
	if update.ID != o.ID {
		t.Errorf("upsert created a new row: %d != %d", update.ID, o.ID)
	}

	want := []entities.Observation{{
		ID:              o.ID,
		BatchID:         b.ID,
		Date:            day,
		TemperatureC:    entities.Float(25),
		HumidityPercent: entities.Float(82),
		CO2:             entities.CO2Medium,
		LightHours:      entities.Float(12),
	}}
	got, err := repo.ListObservations(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want[0], update); diff != "" {
		t.Errorf("upserted observation not refreshed (-want +got):\n%s", diff)
	}
}

func TestListObservationsOrderedByDate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	b := createBatch(t, repo, "Gagan", "Compost")
	start := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)

	for _, offset := range []int{3, 1, 2} {
		o := entities.Observation{BatchID: b.ID, Date: start.AddDate(0, 0, offset), CO2: entities.CO2Low}
		if err := repo.UpsertObservation(ctx, &o); err != nil {
			t.Fatalf("UpsertObservation: %v", err)
		}
	}
	got, err := repo.ListObservations(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Fatalf("observations not in date order: %v then %v", got[i-1].Date, got[i].Date)
		}
	}
}

func TestUpsertHarvest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	straw := createBatch(t, repo, "Dhanush", "Straw")
	compost := createBatch(t, repo, "Gagan", "Compost")

	harvests := []entities.Harvest{
		{BatchID: straw.ID, FlushNumber: 2, FlushYieldKg: 1.5},
		{BatchID: straw.ID, FlushNumber: 1, FlushYieldKg: 2.0, TotalBatchYieldKg: entities.Float(2.0),
			Date: time.Date(2025, 11, 27, 0, 0, 0, 0, time.UTC)},
		{BatchID: compost.ID, FlushNumber: 1, FlushYieldKg: 3.1},
	}
	for i := range harvests {
		if err := repo.UpsertHarvest(ctx, &harvests[i]); err != nil {
			t.Fatalf("UpsertHarvest: %v", err)
		}
	}

	correction := entities.Harvest{BatchID: straw.ID, FlushNumber: 1, FlushYieldKg: 2.2}
	if err := repo.UpsertHarvest(ctx, &correction); err != nil {
		t.Fatalf("UpsertHarvest correction: %v", err)
	}
	if correction.TotalBatchYieldKg == nil || *correction.TotalBatchYieldKg != 2.0 || correction.Date.IsZero() {
		t.Errorf("optional fields lost on update: %+v", correction)
	}

	got, err := repo.ListHarvests(ctx, straw.ID)
	if err != nil {
		t.Fatalf("ListHarvests: %v", err)
	}
	if len(got) != 2 || got[0].FlushNumber != 1 || got[0].FlushYieldKg != 2.2 || got[1].FlushNumber != 2 {
		t.Errorf("unexpected harvests %+v", got)
	}

	all, err := repo.ListAllHarvests(ctx)
	if err != nil {
		t.Fatalf("ListAllHarvests: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 harvests, got %d", len(all))
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	b := createBatch(t, repo, "Dhanush", "Straw")
	h := entities.Harvest{BatchID: b.ID, FlushNumber: 1, FlushYieldKg: 1}
	if err := repo.UpsertHarvest(ctx, &h); err != nil {
		t.Fatalf("UpsertHarvest: %v", err)
	}

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	batches, err := repo.ListAllBatches(ctx)
	if err != nil {
		t.Fatalf("ListAllBatches: %v", err)
	}
	harvests, err := repo.ListAllHarvests(ctx)
	if err != nil {
		t.Fatalf("ListAllHarvests: %v", err)
	}
	if len(batches) != 0 || len(harvests) != 0 {
		t.Errorf("expected empty database, got %d batches and %d harvests", len(batches), len(harvests))
	}
}

func TestMigrateBackfillsUsername(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	legacy := &SQLRepository{db: db, driver: DriverSQLite}
	if _, err := db.Exec(`CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		t.Fatalf("create schema_version: %v", err)
	}
	if err := legacy.apply(ctx, migrations[0]); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO batches(substrate_type, substrate_moisture_percent, spawn_rate_percent,
		start_date, created_at, updated_at) VALUES('Straw', 65, 5, '2025-11-04', ?, ?)`, now(), now()); err != nil {
		t.Fatalf("insert legacy batch: %v", err)
	}
	db.Close()

	repo, err := NewSQLiteRepository(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	version, err := repo.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
	batches, err := repo.ListBatches(ctx, entities.DefaultUsername)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected the legacy batch to be owned by %q, got %+v", entities.DefaultUsername, batches)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: DriverPostgres}
	if got := pg.rebind("SELECT a FROM t WHERE b = ? AND c = ?"); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &SQLRepository{driver: DriverSQLite}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Errorf("sqlite query rewritten: %q", got)
	}
}
