// Package seed fills an empty database with three demonstration batches
package seed

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/repository"
)

const (
	spawnRatePercent = 5.0
	harvestStartDay  = 23
)

var (
	firstDay = time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	lastDay  = time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)

	// Days after harvestStartDay on which a flush is picked
	harvestDays = map[int]bool{0: true, 4: true, 9: true, 14: true, 19: true, 24: true, 29: true}
)

type batchConfig struct {
	username   string
	substrate  string
	moisture   float64
	minHarvest float64
	maxHarvest float64
}

var batches = []batchConfig{
	{"Dhanush", "Straw", 65, 1.0, 3.0},
	{"Rakesh", "Sawdust", 70, 2.0, 4.0},
	{"Gagan", "Compost", 68, 1.5, 5.0},
}

// Usernames lists the growers owning the seeded batches
func Usernames() []string {
	names := make([]string, len(batches))
	for i, b := range batches {
		names[i] = b.username
	}
	return names
}

// Result describes what a seeding run stored
type Result struct {
	Skipped      bool
	BatchIDs     []int64
	Observations int
	Harvests     int
}

// Seed stores the demonstration batches with their daily observations and
// harvests. It does nothing when a seeded grower already has batches, unless
// reset is set, in which case all existing data is removed first.
// The generated readings are the same on every run.
func Seed(ctx context.Context, repo repository.BatchRepository, reset bool) (Result, error) {
	var res Result

	exists, err := seeded(ctx, repo)
	if err != nil {
		return res, err
	}
	if exists && !reset {
		log.Printf("Seed batches already present, skipping")
		res.Skipped = true
		return res, nil
	}
	if reset {
		log.Printf("Clearing existing data...")
		if err := repo.Reset(ctx); err != nil {
			return res, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(42))
	days := int(lastDay.Sub(firstDay).Hours()/24) + 1

	for _, cfg := range batches {
		b := entities.Batch{
			Username:                 cfg.username,
			SubstrateType:            cfg.substrate,
			SubstrateMoisturePercent: cfg.moisture,
			SpawnRatePercent:         spawnRatePercent,
			StartDate:                firstDay,
		}
		if err := repo.CreateBatch(ctx, &b); err != nil {
			return res, fmt.Errorf("failed to create batch for %s: %w", cfg.username, err)
		}
		res.BatchIDs = append(res.BatchIDs, b.ID)

		total := 0.0
		flush := 1
		for day := 0; day < days; day++ {
			date := firstDay.AddDate(0, 0, day)
			temp, hum := weather(rng, day)

			obs := entities.Observation{
				BatchID:         b.ID,
				Date:            date,
				TemperatureC:    entities.Float(temp),
				HumidityPercent: entities.Float(hum),
				CO2:             co2Level(temp, hum),
			}
			obs.LightHours = entities.Float(round(uniform(rng, 10, 14), 1))
			if err := repo.UpsertObservation(ctx, &obs); err != nil {
				return res, fmt.Errorf("failed to store observation for batch %d: %w", b.ID, err)
			}
			res.Observations++

			if day < harvestStartDay || !harvestDays[day-harvestStartDay] {
				continue
			}
			yield := harvestYield(rng, cfg, temp, hum)
			total += yield
			h := entities.Harvest{
				BatchID:           b.ID,
				FlushNumber:       flush,
				FlushYieldKg:      yield,
				TotalBatchYieldKg: entities.Float(round(total, 2)),
				Date:              date,
			}
			if err := repo.UpsertHarvest(ctx, &h); err != nil {
				return res, fmt.Errorf("failed to store harvest for batch %d: %w", b.ID, err)
			}
			res.Harvests++
			flush++
		}
		log.Printf("Seeded batch %s (ID: %d): %d observations, %d harvests, total yield %.2f kg",
			cfg.username, b.ID, days, flush-1, total)
	}
	return res, nil
}

func seeded(ctx context.Context, repo repository.BatchRepository) (bool, error) {
	for _, name := range Usernames() {
		existing, err := repo.ListBatches(ctx, name)
		if err != nil {
			return false, fmt.Errorf("failed to check existing batches: %w", err)
		}
		if len(existing) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// weather gives a South India November/December day: cooler and more humid
// after the first three weeks
func weather(rng *rand.Rand, day int) (float64, float64) {
	tempVariation := uniform(rng, -3, 4)
	humVariation := uniform(rng, -15, 15)
	if day > 20 {
		tempVariation -= 1.5
		humVariation += 5
	}
	temp := clamp(round(26+tempVariation, 1), 22, 30)
	hum := clamp(round(75+humVariation, 1), 60, 90)
	return temp, hum
}

func co2Level(temp, hum float64) entities.CO2Level {
	switch {
	case temp > 28 && hum > 85:
		return entities.CO2High
	case temp < 24 || hum < 70:
		return entities.CO2Low
	default:
		return entities.CO2Medium
	}
}

func harvestYield(rng *rand.Rand, cfg batchConfig, temp, hum float64) float64 {
	factor := 1.0
	switch {
	case temp >= 24 && temp <= 27 && hum >= 75 && hum <= 85:
		factor = 1.15
	case temp > 28 || hum < 70:
		factor = 0.85
	}
	yield := round(uniform(rng, cfg.minHarvest, cfg.maxHarvest)*factor, 2)
	return clamp(yield, 0.5, cfg.maxHarvest*1.2)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
