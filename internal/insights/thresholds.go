package insights

import (
	"errors"
	"fmt"
)

// Humidity correlation modes for the cross-batch comparison.
const (
	// CorrelationNarrative always states that higher humidity correlates with
	// better yield, whichever batch actually yielded more.
	CorrelationNarrative = "narrative"
	// CorrelationMeasured phrases the statement from the total yields of the
	// two humidity extremes.
	CorrelationMeasured = "measured"
)

// Range is an inclusive optimal band.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies within the band, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Thresholds holds every constant the engine compares measurements against.
// The engine never modifies it.
type Thresholds struct {
	Temperature Range `yaml:"temperature"`
	Humidity    Range `yaml:"humidity"`
	LightHours  Range `yaml:"light_hours"`

	TemperatureVarianceMax float64 `yaml:"temperature_variance_max"`
	TemperatureTrendWindow int     `yaml:"temperature_trend_window"`
	TemperatureTrendDelta  float64 `yaml:"temperature_trend_delta"`
	HumidityTrendWindow    int     `yaml:"humidity_trend_window"`
	HumidityTrendDelta     float64 `yaml:"humidity_trend_delta"`
	HumidityAnomalyLimit   int     `yaml:"humidity_anomaly_limit"`
	CO2HighRunMin          int     `yaml:"co2_high_run_min"`

	FirstFlushShortfallRatio float64 `yaml:"first_flush_shortfall_ratio"`
	FlushDeclineRatio        float64 `yaml:"flush_decline_ratio"`
	FlushStrongRatio         float64 `yaml:"flush_strong_ratio"`
	ProjectedSecondRatio     float64 `yaml:"projected_second_ratio"`
	ProjectedSecondMaxRatio  float64 `yaml:"projected_second_max_ratio"`
	ProjectedThirdRatio      float64 `yaml:"projected_third_ratio"`
	ProjectionUpside         float64 `yaml:"projection_upside"`
	SummaryProjectionFactor  float64 `yaml:"summary_projection_factor"`

	HumidityCorrelation string `yaml:"humidity_correlation"`
}

// DefaultThresholds returns the cultivation ranges and ratios the insights
// have always been tuned to.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature: Range{Min: 20.0, Max: 24.0},
		Humidity:    Range{Min: 80.0, Max: 90.0},
		LightHours:  Range{Min: 10.0, Max: 14.0},

		TemperatureVarianceMax: 5.0,
		TemperatureTrendWindow: 3,
		TemperatureTrendDelta:  1.0,
		HumidityTrendWindow:    7,
		HumidityTrendDelta:     5.0,
		HumidityAnomalyLimit:   3,
		CO2HighRunMin:          5,

		FirstFlushShortfallRatio: 0.7,
		FlushDeclineRatio:        0.5,
		FlushStrongRatio:         0.8,
		ProjectedSecondRatio:     0.65,
		ProjectedSecondMaxRatio:  0.8,
		ProjectedThirdRatio:      0.6,
		ProjectionUpside:         1.2,
		SummaryProjectionFactor:  2.5,

		HumidityCorrelation: CorrelationNarrative,
	}
}

// Validate checks that the thresholds describe usable bands and windows.
func (t Thresholds) Validate() error {
	var errs []error
	bands := []struct {
		name string
		r    Range
	}{
		{"temperature", t.Temperature},
		{"humidity", t.Humidity},
		{"light_hours", t.LightHours},
	}
	for _, b := range bands {
		if b.r.Min > b.r.Max {
			errs = append(errs, fmt.Errorf("%s range min %.1f exceeds max %.1f", b.name, b.r.Min, b.r.Max))
		}
	}
	if t.TemperatureTrendWindow < 1 || t.HumidityTrendWindow < 1 {
		errs = append(errs, errors.New("trend windows must be at least 1"))
	}
	if t.HumidityAnomalyLimit < 0 || t.CO2HighRunMin < 1 {
		errs = append(errs, errors.New("humidity_anomaly_limit must be >= 0 and co2_high_run_min >= 1"))
	}
	if t.TemperatureVarianceMax < 0 || t.FirstFlushShortfallRatio < 0 || t.ProjectionUpside < 0 {
		errs = append(errs, errors.New("variance and ratio thresholds must not be negative"))
	}
	switch t.HumidityCorrelation {
	case CorrelationNarrative, CorrelationMeasured:
	default:
		errs = append(errs, fmt.Errorf("unknown humidity_correlation %q", t.HumidityCorrelation))
	}
	return errors.Join(errs...)
}
