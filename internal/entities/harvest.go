package entities

import (
	"time"
)

// Harvest is a single flush picked from a batch
type Harvest struct {
	ID                int64
	BatchID           int64
	FlushNumber       int      // Unique per batch, starts at 1
	FlushYieldKg      float64  // Yield of this flush in kg
	TotalBatchYieldKg *float64 // Cumulative yield as reported by the grower, optional
	Date              time.Time
}
