package insights

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

// BatchRecord is everything the comparator needs about one batch.
type BatchRecord struct {
	Batch        entities.Batch
	Observations []entities.Observation
	Harvests     []entities.Harvest
}

// Resolver looks batches up by id.
type Resolver interface {
	Resolve(id int64) (BatchRecord, bool)
}

// MapResolver resolves batches from an in-memory map.
type MapResolver map[int64]BatchRecord

func (m MapResolver) Resolve(id int64) (BatchRecord, bool) {
	r, ok := m[id]
	return r, ok
}

type YieldComparison struct {
	BatchID    int64   `json:"batch_id"`
	TotalYield float64 `json:"total_yield"`
	Flushes    int     `json:"flushes"`
}

type AverageConditions struct {
	BatchID        int64    `json:"batch_id"`
	AvgTemperature *float64 `json:"avg_temperature"`
	AvgHumidity    *float64 `json:"avg_humidity"`
	SubstrateType  string   `json:"substrate_type"`
}

// Comparison is the outcome of comparing two or more batches. Lists follow
// request order.
type Comparison struct {
	YieldComparison   []YieldComparison   `json:"yield_comparison"`
	AverageConditions []AverageConditions `json:"average_conditions"`
	Insights          []string            `json:"insights"`
}

const minComparedBatches = 2

// NormalizeBatchIDs drops non-positive and repeated ids, keeping first
// occurrence order.
func NormalizeBatchIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Compare reports yields, average conditions and comparative insights for the
// given batches. Problems with the input are reported as the only insight.
func (e *Engine) Compare(ids []int64, r Resolver) Comparison {
	ids = NormalizeBatchIDs(ids)
	if len(ids) < minComparedBatches {
		return reportOnly("At least 2 batches are required for comparison.")
	}

	records := make([]BatchRecord, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		rec, ok := r.Resolve(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		records = append(records, rec)
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		names := make([]string, len(missing))
		for i, id := range missing {
			names[i] = strconv.FormatInt(id, 10)
		}
		return reportOnly("Some batches not found: " + strings.Join(names, ", "))
	}

	stats := make([]batchStats, len(records))
	for i, rec := range records {
		stats[i] = newBatchStats(rec)
	}

	c := Comparison{
		YieldComparison:   make([]YieldComparison, len(stats)),
		AverageConditions: make([]AverageConditions, len(stats)),
		Insights:          []string{},
	}
	for i, s := range stats {
		c.YieldComparison[i] = YieldComparison{
			BatchID:    s.id,
			TotalYield: round(s.totalYield, 2),
			Flushes:    s.flushes,
		}
		c.AverageConditions[i] = AverageConditions{
			BatchID:        s.id,
			AvgTemperature: roundedMean(s.temps),
			AvgHumidity:    roundedMean(s.hums),
			SubstrateType:  s.substrate,
		}
	}

	if msg, ok := yieldInsight(stats); ok {
		c.Insights = append(c.Insights, msg)
	}
	if msg, ok := e.humidityInsight(stats); ok {
		c.Insights = append(c.Insights, msg)
	}
	if msg, ok := stabilityInsight(stats); ok {
		c.Insights = append(c.Insights, msg)
	}
	return c
}

func reportOnly(msg string) Comparison {
	return Comparison{
		YieldComparison:   []YieldComparison{},
		AverageConditions: []AverageConditions{},
		Insights:          []string{msg},
	}
}

type batchStats struct {
	id         int64
	substrate  string
	totalYield float64
	flushes    int
	temps      []float64
	hums       []float64
}

func newBatchStats(rec BatchRecord) batchStats {
	s := batchStats{
		id:        rec.Batch.ID,
		substrate: rec.Batch.SubstrateType,
		flushes:   len(rec.Harvests),
		temps:     readings(rec.Observations, temperatureOf),
		hums:      readings(rec.Observations, humidityOf),
	}
	for _, h := range rec.Harvests {
		s.totalYield += h.FlushYieldKg
	}
	return s
}

func roundedMean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	return entities.Float(round(mean(xs), 1))
}

// byDescending returns a copy of stats stably sorted by key, highest first.
func byDescending(stats []batchStats, key func(batchStats) float64) []batchStats {
	out := append([]batchStats(nil), stats...)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
	return out
}

func yieldInsight(stats []batchStats) (string, bool) {
	sorted := byDescending(stats, func(s batchStats) float64 { return s.totalYield })
	best, worst := sorted[0], sorted[len(sorted)-1]
	if best.totalYield <= 0 || worst.totalYield <= 0 {
		return "", false
	}
	diff := (best.totalYield - worst.totalYield) / worst.totalYield * 100
	return fmt.Sprintf("Batch #%d (%s substrate) outperformed Batch #%d (%s) by %.0f%% in total yield.",
		best.id, best.substrate, worst.id, worst.substrate, diff), true
}

func (e *Engine) humidityInsight(stats []batchStats) (string, bool) {
	var withHumidity []batchStats
	for _, s := range stats {
		if len(s.hums) > 0 {
			withHumidity = append(withHumidity, s)
		}
	}
	if len(withHumidity) < 2 {
		return "", false
	}
	avg := func(s batchStats) float64 { return round(mean(s.hums), 1) }
	sorted := byDescending(withHumidity, avg)
	high, low := sorted[0], sorted[len(sorted)-1]
	hi, lo := avg(high), avg(low)

	if e.th.HumidityCorrelation == CorrelationMeasured {
		switch {
		case hi == lo:
			return "", false
		case high.totalYield < low.totalYield:
			return fmt.Sprintf("Higher average humidity (%.1f%% vs %.1f%%) did not correlate with better yields "+
				"in this comparison.", hi, lo), true
		case high.totalYield == low.totalYield:
			return fmt.Sprintf("Average humidity (%.1f%% vs %.1f%%) showed no yield difference in this comparison.",
				hi, lo), true
		}
	}
	return fmt.Sprintf("Higher average humidity (%.1f%% vs %.1f%%) correlates with better yields in this comparison.",
		hi, lo), true
}

func stabilityInsight(stats []batchStats) (string, bool) {
	type variance struct {
		id    int64
		value float64
	}
	var vs []variance
	for _, s := range stats {
		if len(s.temps) > 1 {
			vs = append(vs, variance{id: s.id, value: spread(s.temps)})
		}
	}
	if len(vs) < 2 {
		return "", false
	}
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].value < vs[j].value })
	return fmt.Sprintf("Temperature variance was lower in Batch #%d (%.1f°C), suggesting more stable conditions.",
		vs[0].id, vs[0].value), true
}
