package seed

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/google/go-cmp/cmp"
)

func newTestRepository(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	res, err := Seed(ctx, repo, false)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// 37 days from Nov 4 to Dec 10; flushes on days 23, 27 and 32
	if res.Skipped || len(res.BatchIDs) != 3 || res.Observations != 3*37 || res.Harvests != 3*3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	all, err := repo.ListAllBatches(ctx)
	if err != nil {
		t.Fatalf("ListAllBatches: %v", err)
	}
	var owners []string
	for _, b := range all {
		owners = append(owners, b.Username)
	}
	if diff := cmp.Diff([]string{"Dhanush", "Rakesh", "Gagan"}, owners); diff != "" {
		t.Errorf("owners mismatch (-want +got):\n%s", diff)
	}

	for _, id := range res.BatchIDs {
		obs, err := repo.ListObservations(ctx, id)
		if err != nil {
			t.Fatalf("ListObservations: %v", err)
		}
		for _, o := range obs {
			if *o.TemperatureC < 22 || *o.TemperatureC > 30 || *o.HumidityPercent < 60 || *o.HumidityPercent > 90 {
				t.Errorf("batch %d on %s: reading out of range: %.1f°C %.1f%%", id, o.Date.Format(entities.DateLayout), *o.TemperatureC, *o.HumidityPercent)
			}
			if *o.LightHours < 10 || *o.LightHours > 14 || !o.CO2.Recorded() {
				t.Errorf("batch %d on %s: unexpected light or CO2", id, o.Date.Format(entities.DateLayout))
			}
		}

		harvests, err := repo.ListHarvests(ctx, id)
		if err != nil {
			t.Fatalf("ListHarvests: %v", err)
		}
		var dates []string
		for i, h := range harvests {
			if h.FlushNumber != i+1 {
				t.Errorf("flush %d numbered %d", i+1, h.FlushNumber)
			}
			dates = append(dates, h.Date.Format(entities.DateLayout))
		}
		if diff := cmp.Diff([]string{"2025-11-27", "2025-12-01", "2025-12-06"}, dates); diff != "" {
			t.Errorf("harvest dates mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSeedSkipsAndClears(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first, err := Seed(ctx, repo, false)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	again, err := Seed(ctx, repo, false)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !again.Skipped {
		t.Error("expected the second run to skip")
	}

	firstObs, err := repo.ListObservations(ctx, first.BatchIDs[0])
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}

	cleared, err := Seed(ctx, repo, true)
	if err != nil {
		t.Fatalf("Seed with clear: %v", err)
	}
	all, err := repo.ListAllBatches(ctx)
	if err != nil {
		t.Fatalf("ListAllBatches: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d batches after clearing, want 3", len(all))
	}

	clearedObs, err := repo.ListObservations(ctx, cleared.BatchIDs[0])
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	// Same readings on every run
	for i := range firstObs {
		if *firstObs[i].TemperatureC != *clearedObs[i].TemperatureC || firstObs[i].CO2 != clearedObs[i].CO2 {
			t.Fatalf("day %d differs between runs", i)
		}
	}
}

func TestCO2Level(t *testing.T) {
	tests := []struct {
		temp, hum float64
		want      entities.CO2Level
	}{
		{29, 86, entities.CO2High},
		{29, 85, entities.CO2Medium},
		{23.9, 80, entities.CO2Low},
		{25, 69.9, entities.CO2Low},
		{25, 80, entities.CO2Medium},
	}
	for _, tt := range tests {
		if got := co2Level(tt.temp, tt.hum); got != tt.want {
			t.Errorf("co2Level(%v, %v) = %v, want %v", tt.temp, tt.hum, got, tt.want)
		}
	}
}

func TestHarvestYieldClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cfg := batches[2]
	for i := 0; i < 100; i++ {
		y := harvestYield(rng, cfg, 25, 80)
		if y < 0.5 || y > cfg.maxHarvest*1.2 {
			t.Fatalf("yield %.2f outside [0.5, %.2f]", y, cfg.maxHarvest*1.2)
		}
	}
}
