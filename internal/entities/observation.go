package entities

import (
	"time"
)

// DateLayout is the calendar-day format used for observation and harvest dates
const DateLayout = "2006-01-02"

// Observation is one day of environmental readings for a batch.
// Nil readings were not recorded that day.
type Observation struct {
	ID              int64
	BatchID         int64
	Date            time.Time // Unique per batch
	TemperatureC    *float64  // Ambient temperature in °C
	HumidityPercent *float64  // Relative humidity in %
	CO2             CO2Level
	LightHours      *float64 // Hours of light per day
}

// Float returns a pointer to v, for building optional readings
func Float(v float64) *float64 {
	return &v
}
