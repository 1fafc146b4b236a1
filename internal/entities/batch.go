// Package entities contains the core domain objects for the mushroom-bot application
package entities

import (
	"time"
)

// DefaultUsername is assigned to batches created without an owner
const DefaultUsername = "unknown"

// Batch represents a single cultivation batch
type Batch struct {
	ID                       int64
	Username                 string    // Grower that owns the batch
	SubstrateType            string    // Growing medium, free text (Straw, Sawdust, ...)
	SubstrateMoisturePercent float64   // Substrate moisture at spawning in %
	SpawnRatePercent         float64   // Spawn rate in %
	StartDate                time.Time // Day the batch was spawned
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
