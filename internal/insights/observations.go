package insights

import (
	"fmt"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

// analyzeObservations runs the per-metric checks over date-ordered observations.
// Each metric is independent; a metric with no readings contributes nothing.
func (e *Engine) analyzeObservations(obs []entities.Observation) findings {
	var f findings
	if temps := readings(obs, temperatureOf); len(temps) > 0 {
		f.merge(e.analyzeTemperature(temps))
	}
	if hums := readings(obs, humidityOf); len(hums) > 0 {
		f.merge(e.analyzeHumidity(obs, hums))
	}
	f.merge(e.analyzeCO2(obs))
	if light := readings(obs, lightOf); len(light) > 0 {
		f.merge(e.analyzeLight(light))
	}
	return f
}

func (e *Engine) analyzeTemperature(temps []float64) findings {
	var f findings
	opt := e.th.Temperature
	avg := mean(temps)

	if spread(temps) > e.th.TemperatureVarianceMax {
		lo, hi := bounds(temps)
		f.warnings = append(f.warnings, fmt.Sprintf(
			"Temperature variance detected: Daily temperature fluctuations exceed %g°C "+
				"(range: %.1f°C to %.1f°C), which may stress mycelium growth.",
			e.th.TemperatureVarianceMax, lo, hi))
	}

	switch {
	case avg < opt.Min:
		f.suggestions = append(f.suggestions, fmt.Sprintf(
			"Average temperature of %.1f°C is below optimal range (%.1f-%.1f°C). "+
				"Consider increasing temperature to improve growth rates.", avg, opt.Min, opt.Max))
	case avg > opt.Max:
		f.suggestions = append(f.suggestions, fmt.Sprintf(
			"Average temperature of %.1f°C is above optimal range (%.1f-%.1f°C). "+
				"Consider reducing temperature to prevent stress.", avg, opt.Min, opt.Max))
	default:
		f.suggestions = append(f.suggestions, fmt.Sprintf(
			"Average temperature of %.1f°C is optimal. Maintain this range for consistent yields.", avg))
	}

	// The earlier window is the first n readings when there are at least 2n,
	// otherwise whatever precedes the recent window.
	n := e.th.TemperatureTrendWindow
	if len(temps) < n {
		return f
	}
	recent := temps[len(temps)-n:]
	earlier := temps[:len(temps)-n]
	if len(temps) >= 2*n {
		earlier = temps[:n]
	}
	if len(earlier) == 0 {
		return f
	}
	recentAvg, earlierAvg := mean(recent), mean(earlier)
	switch {
	case recentAvg > earlierAvg+e.th.TemperatureTrendDelta:
		f.trends = append(f.trends, fmt.Sprintf(
			"Temperature trend: Increasing from %.1f°C to %.1f°C over recent period.", earlierAvg, recentAvg))
	case recentAvg < earlierAvg-e.th.TemperatureTrendDelta:
		f.trends = append(f.trends, fmt.Sprintf(
			"Temperature trend: Decreasing from %.1f°C to %.1f°C over recent period.", earlierAvg, recentAvg))
	}
	return f
}

func (e *Engine) analyzeHumidity(obs []entities.Observation, hums []float64) findings {
	var f findings
	opt := e.th.Humidity
	avg := mean(hums)

	for _, o := range obs {
		if len(f.anomalies) == e.th.HumidityAnomalyLimit {
			break
		}
		if o.HumidityPercent == nil || *o.HumidityPercent >= opt.Min {
			continue
		}
		f.anomalies = append(f.anomalies, fmt.Sprintf(
			"Humidity dropped to %.0f%% on %s, significantly below optimal range (%.1f-%.1f%%).",
			*o.HumidityPercent, o.Date.Format(entities.DateLayout), opt.Min, opt.Max))
	}

	switch {
	case avg < opt.Min:
		f.suggestions = append(f.suggestions, fmt.Sprintf(
			"Consider increasing humidity to %.1f-%.1f%% based on successful batches "+
				"with similar substrate types. Current average: %.1f%%.", opt.Min, opt.Max, avg))
	case avg > opt.Max:
		f.suggestions = append(f.suggestions, fmt.Sprintf(
			"Humidity is above optimal range. Consider reducing to %.1f-%.1f%% "+
				"to prevent contamination. Current average: %.1f%%.", opt.Min, opt.Max, avg))
	}

	// Windows overlap when there are fewer than 2n readings.
	n := e.th.HumidityTrendWindow
	if len(hums) < n {
		return f
	}
	recentAvg, earlierAvg := mean(hums[len(hums)-n:]), mean(hums[:n])
	switch {
	case recentAvg > earlierAvg+e.th.HumidityTrendDelta:
		f.trends = append(f.trends, fmt.Sprintf(
			"Humidity trend: Increasing from %.0f%% to %.0f%% over the past week, approaching optimal range.",
			earlierAvg, recentAvg))
	case recentAvg < earlierAvg-e.th.HumidityTrendDelta:
		f.trends = append(f.trends, fmt.Sprintf(
			"Humidity trend: Decreasing from %.0f%% to %.0f%% over the past week, moving away from optimal range.",
			earlierAvg, recentAvg))
	}
	return f
}

func (e *Engine) analyzeCO2(obs []entities.Observation) findings {
	var f findings
	highCount, ventilated := 0, false
	for _, o := range obs {
		switch o.CO2 {
		case entities.CO2High:
			highCount++
		case entities.CO2Low, entities.CO2Medium:
			ventilated = true
		}
	}

	if highCount >= e.th.CO2HighRunMin {
		streak := longestRun(obs, func(o entities.Observation) bool { return o.CO2 == entities.CO2High })
		if streak >= e.th.CO2HighRunMin {
			f.anomalies = append(f.anomalies, fmt.Sprintf(
				"CO2 levels remained 'high' for %d consecutive days, which may indicate insufficient ventilation.",
				streak))
			f.suggestions = append(f.suggestions,
				"Increase ventilation to reduce CO2 levels. High CO2 can inhibit fruiting body development.")
		}
	}
	if ventilated {
		f.suggestions = append(f.suggestions,
			"CO2 levels are within acceptable range. Maintain current ventilation practices.")
	}
	return f
}

func (e *Engine) analyzeLight(light []float64) findings {
	var f findings
	opt := e.th.LightHours
	avg := mean(light)
	var msg string
	switch {
	case opt.Contains(avg):
		msg = fmt.Sprintf("Light exposure of %.1f hours/day aligns with best-performing batches. Continue this pattern.", avg)
	case avg < opt.Min:
		msg = fmt.Sprintf("Light exposure of %.1f hours/day is below optimal. Consider increasing to %.1f-%.1f hours/day.",
			avg, opt.Min, opt.Max)
	default:
		msg = fmt.Sprintf("Light exposure of %.1f hours/day is above optimal. Consider reducing to %.1f-%.1f hours/day.",
			avg, opt.Min, opt.Max)
	}
	f.suggestions = append(f.suggestions, msg)
	return f
}
