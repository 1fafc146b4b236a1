package insights

import (
	"fmt"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

// analyzeHarvests compares flush-ordered harvests of batch with its peers,
// batches sharing the same substrate (batch included).
func (e *Engine) analyzeHarvests(harvests []entities.Harvest, batch entities.Batch,
	all []entities.Batch, allHarvests []entities.Harvest) findings {
	var f findings

	if first := harvests[0]; first.FlushNumber == 1 {
		if peerAvg, ok := peerFirstFlushMean(batch, all, allHarvests); ok && peerAvg > 0 &&
			first.FlushYieldKg < e.th.FirstFlushShortfallRatio*peerAvg {
			below := (peerAvg - first.FlushYieldKg) / peerAvg * 100
			f.warnings = append(f.warnings, fmt.Sprintf(
				"Early yield underperformance detected: First flush yield (%.1f kg) is "+
					"%.0f%% below historical average (%.1f kg) for similar batches.",
				first.FlushYieldKg, below, peerAvg))
		}
	}

	if len(harvests) >= 2 {
		first, second := harvests[0].FlushYieldKg, harvests[1].FlushYieldKg
		switch {
		case second < first*e.th.FlushDeclineRatio:
			f.trends = append(f.trends, fmt.Sprintf(
				"Yield trend: Second flush (%.1f kg) shows significant decline from first flush "+
					"(%.1f kg). This is normal but monitor substrate condition.", second, first))
		case second > first*e.th.FlushStrongRatio:
			f.trends = append(f.trends, fmt.Sprintf(
				"Yield trend: Strong second flush performance (%.1f kg) relative to first flush "+
					"(%.1f kg). Excellent substrate condition.", second, first))
		}
	}

	if len(harvests) == 1 {
		first := harvests[0].FlushYieldKg
		second := first * e.th.ProjectedSecondRatio
		total := first + second + second*e.th.ProjectedThirdRatio
		f.trends = append(f.trends,
			fmt.Sprintf("Yield trend: First flush shows promise (%.1f kg). Historical data suggests "+
				"second flush may yield %.1f-%.1f kg if conditions remain stable.",
				first, second, first*e.th.ProjectedSecondMaxRatio),
			fmt.Sprintf("Projected total yield: %.1f-%.1f kg based on current trajectory.",
				total, total*e.th.ProjectionUpside))
	}
	return f
}

// peerFirstFlushMean averages the flush-1 yields of every batch sharing
// batch's substrate.
func peerFirstFlushMean(batch entities.Batch, all []entities.Batch, allHarvests []entities.Harvest) (float64, bool) {
	peers := make(map[int64]bool)
	for _, b := range all {
		if b.SubstrateType == batch.SubstrateType {
			peers[b.ID] = true
		}
	}
	var yields []float64
	for _, h := range allHarvests {
		if h.FlushNumber == 1 && peers[h.BatchID] {
			yields = append(yields, h.FlushYieldKg)
		}
	}
	if len(yields) == 0 {
		return 0, false
	}
	return mean(yields), true
}
