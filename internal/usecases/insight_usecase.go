package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/abelzeko/mushroom-bot/internal/integration/openai"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"golang.org/x/sync/errgroup"
)

// InsightUseCase loads batch data and runs the insight engine over it
type InsightUseCase struct {
	repo          repository.BatchRepository
	engine        *insights.Engine
	openAIService openai.OpenAIService
}

// NewInsightUseCase creates a new insight use case. openAIService may be nil,
// in which case free-text queries are answered with a help hint.
func NewInsightUseCase(repo repository.BatchRepository, engine *insights.Engine, openAIService openai.OpenAIService) *InsightUseCase {
	return &InsightUseCase{
		repo:          repo,
		engine:        engine,
		openAIService: openAIService,
	}
}

func (uc *InsightUseCase) loadSnapshot(ctx context.Context, id int64) (insights.Snapshot, error) {
	var s insights.Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Batch, err = uc.repo.GetBatch(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		s.Observations, err = uc.repo.ListObservations(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		s.Harvests, err = uc.repo.ListHarvests(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		s.AllBatches, err = uc.repo.ListAllBatches(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.AllHarvests, err = uc.repo.ListAllHarvests(ctx)
		return err
	})
	return s, g.Wait()
}

// GenerateInsights analyzes a single batch
func (uc *InsightUseCase) GenerateInsights(ctx context.Context, id int64) (insights.Report, error) {
	s, err := uc.loadSnapshot(ctx, id)
	if err != nil {
		return insights.Report{}, err
	}
	return uc.engine.Analyze(s), nil
}

// CompareBatches compares two or more batches. Unknown ids are reported by
// the engine in the comparison's insights, not as an error.
func (uc *InsightUseCase) CompareBatches(ctx context.Context, ids []int64) (insights.Comparison, error) {
	records := make(insights.MapResolver)
	for _, id := range insights.NormalizeBatchIDs(ids) {
		b, err := uc.repo.GetBatch(ctx, id)
		if errors.Is(err, repository.ErrBatchNotFound) {
			continue
		}
		if err != nil {
			return insights.Comparison{}, err
		}
		rec := insights.BatchRecord{Batch: b}
		if rec.Observations, err = uc.repo.ListObservations(ctx, id); err != nil {
			return insights.Comparison{}, err
		}
		if rec.Harvests, err = uc.repo.ListHarvests(ctx, id); err != nil {
			return insights.Comparison{}, err
		}
		records[id] = rec
	}
	return uc.engine.Compare(ids, records), nil
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *InsightUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAIService == nil {
		return "I only understand commands for now. Use /help to see them.", nil
	}
	log.Printf("Interpreting natural language query: %s", query)

	batches, err := uc.repo.ListAllBatches(ctx)
	if err != nil {
		log.Printf("Error fetching batches: %v", err)
		return "Sorry, I couldn't fetch the list of batches right now.", nil
	}
	ids := make([]int64, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, ids)
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}
	log.Printf("Agent response: Command='%s', Batches=%v, Message='%s'",
		agentResp.CommandName, agentResp.BatchIDs, agentResp.UserMessage)

	var body string
	switch agentResp.CommandName {
	case openai.CommandListBatches:
		body = FormatBatchList(batches)
	case openai.CommandGetBatchInsights:
		if len(agentResp.BatchIDs) == 0 {
			return agentResp.UserMessage, nil
		}
		id := agentResp.BatchIDs[0]
		report, err := uc.GenerateInsights(ctx, id)
		if errors.Is(err, repository.ErrBatchNotFound) {
			body = fmt.Sprintf("I couldn't find batch #%d. Use /batches to see available ones.", id)
			break
		}
		if err != nil {
			log.Printf("Error generating insights after agent interpretation: %v", err)
			return "Sorry, I couldn't analyze that batch right now.", nil
		}
		body = FormatReport(id, report)
	case openai.CommandCompareBatches:
		cmp, err := uc.CompareBatches(ctx, agentResp.BatchIDs)
		if err != nil {
			log.Printf("Error comparing batches after agent interpretation: %v", err)
			return "Sorry, I couldn't compare those batches right now.", nil
		}
		body = FormatComparison(cmp)
	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil
	default:
		log.Printf("Agent returned unexpected command: %s", agentResp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}

	if agentResp.UserMessage == "" {
		return body, nil
	}
	return agentResp.UserMessage + "\n\n" + body, nil
}

// FormatBatchList formats batches for display
func FormatBatchList(batches []entities.Batch) string {
	if len(batches) == 0 {
		return "No batches recorded yet."
	}
	var result strings.Builder
	result.WriteString("Batches:\n\n")
	for _, b := range batches {
		result.WriteString(fmt.Sprintf("🍄 #%d %s substrate, started %s (%s)\n",
			b.ID, b.SubstrateType, b.StartDate.Format(entities.DateLayout), b.Username))
	}
	return result.String()
}

// FormatReport formats an insight report for display
func FormatReport(batchID int64, r insights.Report) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Insights for batch #%d:\n\n", batchID))
	writeSection(&result, "⚠️ Warnings", r.Warnings)
	writeSection(&result, "🔎 Anomalies", r.Anomalies)
	writeSection(&result, "💡 Suggestions", r.Suggestions)
	writeSection(&result, "📈 Trends", r.Trends)
	result.WriteString("📝 ")
	result.WriteString(r.Summary)
	return result.String()
}

// FormatComparison formats a batch comparison for display
func FormatComparison(c insights.Comparison) string {
	var result strings.Builder
	if len(c.YieldComparison) > 0 {
		result.WriteString("Batch comparison:\n\n")
	}
	for i, y := range c.YieldComparison {
		result.WriteString(fmt.Sprintf("🍄 #%d: %.2f kg over %d flush(es)", y.BatchID, y.TotalYield, y.Flushes))
		if i < len(c.AverageConditions) {
			ac := c.AverageConditions[i]
			result.WriteString(fmt.Sprintf(", %s", ac.SubstrateType))
			if ac.AvgTemperature != nil {
				result.WriteString(fmt.Sprintf(", %.1f°C", *ac.AvgTemperature))
			}
			if ac.AvgHumidity != nil {
				result.WriteString(fmt.Sprintf(", %.1f%% RH", *ac.AvgHumidity))
			}
		}
		result.WriteString("\n")
	}
	if len(c.YieldComparison) > 0 && len(c.Insights) > 0 {
		result.WriteString("\n")
	}
	for _, s := range c.Insights {
		result.WriteString("• " + s + "\n")
	}
	return strings.TrimRight(result.String(), "\n")
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		b.WriteString("• " + item + "\n")
	}
	b.WriteString("\n")
}
