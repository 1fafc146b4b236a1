// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/repository"
)

// ClimateSource provides scraped daily climate readings
type ClimateSource interface {
	FetchReadings(ctx context.Context) ([]entities.Observation, error)
}

// BatchUseCase handles recording batches, observations and harvests
type BatchUseCase struct {
	repo   repository.BatchRepository
	source ClimateSource
}

// NewBatchUseCase creates a new batch use case; source may be nil when no
// climate logger is configured
func NewBatchUseCase(repo repository.BatchRepository, source ClimateSource) *BatchUseCase {
	return &BatchUseCase{repo: repo, source: source}
}

// BatchDetail is a batch with its observations (newest first) and harvests (by flush)
type BatchDetail struct {
	Batch        entities.Batch
	Observations []entities.Observation
	Harvests     []entities.Harvest
}

// CreateBatch validates and stores a new batch
func (uc *BatchUseCase) CreateBatch(ctx context.Context, b entities.Batch) (entities.Batch, error) {
	b.Username = strings.TrimSpace(b.Username)
	b.SubstrateType = strings.TrimSpace(b.SubstrateType)
	if b.Username == "" {
		b.Username = entities.DefaultUsername
	}
	if b.SubstrateType == "" {
		return b, invalid("substrate_type", "is required")
	}
	if err := checkPercent("substrate_moisture_percent", b.SubstrateMoisturePercent); err != nil {
		return b, err
	}
	if err := checkPercent("spawn_rate_percent", b.SpawnRatePercent); err != nil {
		return b, err
	}
	if b.StartDate.IsZero() {
		return b, invalid("start_date", "is required")
	}

	if err := uc.repo.CreateBatch(ctx, &b); err != nil {
		return b, err
	}
	log.Printf("Created batch %d (%s, %s)", b.ID, b.Username, b.SubstrateType)
	return b, nil
}

// ListBatches returns batches newest first, filtered by owner when username is set
func (uc *BatchUseCase) ListBatches(ctx context.Context, username string) ([]entities.Batch, error) {
	return uc.repo.ListBatches(ctx, strings.TrimSpace(username))
}

// GetBatch returns a single batch
func (uc *BatchUseCase) GetBatch(ctx context.Context, id int64) (entities.Batch, error) {
	return uc.repo.GetBatch(ctx, id)
}

// GetBatchDetail returns a batch together with its records
func (uc *BatchUseCase) GetBatchDetail(ctx context.Context, id int64) (BatchDetail, error) {
	b, err := uc.repo.GetBatch(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	obs, err := uc.repo.ListObservations(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	harvests, err := uc.repo.ListHarvests(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	return BatchDetail{Batch: b, Observations: newestFirst(obs), Harvests: harvests}, nil
}

// ListObservations returns a batch's observations newest first
func (uc *BatchUseCase) ListObservations(ctx context.Context, batchID int64) ([]entities.Observation, error) {
	if _, err := uc.repo.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	obs, err := uc.repo.ListObservations(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return newestFirst(obs), nil
}

func newestFirst(obs []entities.Observation) []entities.Observation {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.After(obs[j].Date) })
	return obs
}

// RecordObservation stores the day's readings for a batch, merging with any
// readings already recorded for that date
func (uc *BatchUseCase) RecordObservation(ctx context.Context, o entities.Observation) (entities.Observation, error) {
	if err := validateObservation(o); err != nil {
		return o, err
	}
	if _, err := uc.repo.GetBatch(ctx, o.BatchID); err != nil {
		return o, err
	}
	if err := uc.repo.UpsertObservation(ctx, &o); err != nil {
		return o, err
	}
	return o, nil
}

func validateObservation(o entities.Observation) error {
	if o.Date.IsZero() {
		return invalid("date", "is required")
	}
	if o.HumidityPercent != nil {
		if err := checkPercent("relative_humidity_percent", *o.HumidityPercent); err != nil {
			return err
		}
	}
	if o.LightHours != nil && (*o.LightHours < 0 || *o.LightHours > 24) {
		return invalid("light_hours_per_day", "must be between 0 and 24")
	}
	return nil
}

// ListHarvests returns a batch's harvests by flush number
func (uc *BatchUseCase) ListHarvests(ctx context.Context, batchID int64) ([]entities.Harvest, error) {
	if _, err := uc.repo.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return uc.repo.ListHarvests(ctx, batchID)
}

// RecordHarvest stores a flush, replacing the yield of an already recorded flush
func (uc *BatchUseCase) RecordHarvest(ctx context.Context, h entities.Harvest) (entities.Harvest, error) {
	if h.FlushNumber < 1 {
		return h, invalid("flush_number", "must be at least 1")
	}
	if h.FlushYieldKg < 0 {
		return h, invalid("flush_yield_kg", "must not be negative")
	}
	if h.TotalBatchYieldKg != nil && *h.TotalBatchYieldKg < 0 {
		return h, invalid("total_batch_yield_kg", "must not be negative")
	}
	if _, err := uc.repo.GetBatch(ctx, h.BatchID); err != nil {
		return h, err
	}
	if err := uc.repo.UpsertHarvest(ctx, &h); err != nil {
		return h, err
	}
	return h, nil
}

// ImportResult counts what an import stored and skipped
type ImportResult struct {
	Saved   int
	Skipped int
}

// ImportObservations upserts scraped readings, skipping rows for unknown
// batches or with invalid values
func (uc *BatchUseCase) ImportObservations(ctx context.Context, readings []entities.Observation) (ImportResult, error) {
	var res ImportResult
	known := make(map[int64]bool)
	for _, o := range readings {
		exists, seen := known[o.BatchID]
		if !seen {
			_, err := uc.repo.GetBatch(ctx, o.BatchID)
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, repository.ErrBatchNotFound):
				log.Printf("Skipping readings for unknown batch %d", o.BatchID)
			default:
				return res, err
			}
			known[o.BatchID] = exists
		}
		if !exists {
			res.Skipped++
			continue
		}
		if err := validateObservation(o); err != nil {
			log.Printf("Skipping reading for batch %d on %s: %v", o.BatchID, o.Date.Format(entities.DateLayout), err)
			res.Skipped++
			continue
		}
		if err := uc.repo.UpsertObservation(ctx, &o); err != nil {
			return res, err
		}
		res.Saved++
	}
	return res, nil
}

// RefreshClimateData fetches the latest climate readings and stores them
func (uc *BatchUseCase) RefreshClimateData(ctx context.Context) error {
	if uc.source == nil {
		return errors.New("no climate source configured")
	}
	log.Println("Starting climate data refresh process...")

	readings, err := uc.source.FetchReadings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch climate data: %w", err)
	}
	log.Printf("Successfully fetched %d climate readings", len(readings))

	res, err := uc.ImportObservations(ctx, readings)
	if err != nil {
		return fmt.Errorf("failed to save climate data: %w", err)
	}
	log.Printf("Climate refresh stored %d readings, skipped %d", res.Saved, res.Skipped)
	return nil
}
