package insights

import (
	"fmt"
	"strings"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

const affirmingSummary = "Shows promising early indicators with stable conditions"

func (e *Engine) summarize(batch entities.Batch, obs []entities.Observation,
	harvests []entities.Harvest, f findings) string {
	if len(obs) == 0 && len(harvests) == 0 {
		return fmt.Sprintf("Batch #%d has no data yet. "+
			"Start recording observations and harvests to generate insights.", batch.ID)
	}

	identity := fmt.Sprintf("Batch #%d uses %s substrate", batch.ID, batch.SubstrateType)
	joiner := " with"
	if temps := readings(obs, temperatureOf); len(temps) > 0 {
		identity += fmt.Sprintf(" with average temperature of %.1f°C", mean(temps))
		joiner = " and"
	}
	if hums := readings(obs, humidityOf); len(hums) > 0 {
		identity += fmt.Sprintf("%s humidity averaging %.0f%%", joiner, mean(hums))
	}
	sentences := []string{identity}

	if len(harvests) > 0 {
		total := 0.0
		for _, h := range harvests {
			total += h.FlushYieldKg
		}
		sentences = append(sentences, fmt.Sprintf("Current yield: %.1f kg across %d flush(es)", total, len(harvests)))
	}

	var concerns []string
	if len(f.warnings) > 0 {
		concerns = append(concerns, clause(strings.ToLower(f.warnings[0])))
	}
	if len(f.anomalies) > 0 {
		concerns = append(concerns, clause(strings.ToLower(f.anomalies[0])))
	}
	if len(concerns) > 0 {
		sentences = append(sentences, "Main concerns: "+strings.Join(concerns, "; "))
	} else {
		sentences = append(sentences, affirmingSummary)
	}

	if key, ok := keyRecommendation(f.suggestions); ok {
		sentences = append(sentences, "Key recommendation: "+clause(key))
	}

	if len(harvests) == 1 {
		projected := harvests[0].FlushYieldKg * e.th.SummaryProjectionFactor
		sentences = append(sentences, fmt.Sprintf("Projected total yield: %.1f-%.1f kg based on current trajectory",
			projected, projected*e.th.ProjectionUpside))
	}

	return strings.Join(sentences, ". ") + "."
}

// keyRecommendation prefers the first suggestion about humidity or
// temperature, falling back to the first suggestion.
func keyRecommendation(suggestions []string) (string, bool) {
	if len(suggestions) == 0 {
		return "", false
	}
	for _, s := range suggestions {
		l := strings.ToLower(s)
		if strings.Contains(l, "humidity") || strings.Contains(l, "temperature") {
			return s, true
		}
	}
	return suggestions[0], true
}

// clause drops the closing period so the text can be embedded in a sentence.
func clause(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".")
}
