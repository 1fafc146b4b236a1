// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/batches [username] - Show recorded batches\n" +
	"/batch [id] - Show a batch with its latest readings\n" +
	"/insights [id] - Analyze a batch\n" +
	"/compare [id] [id] ... - Compare two or more batches\n" +
	"/help - Show this help message"

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot      *tgbotapi.BotAPI
	batches  *usecases.BatchUseCase
	insights *usecases.InsightUseCase
	metrics  *Metrics
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, batches *usecases.BatchUseCase, insights *usecases.InsightUseCase, metrics *Metrics) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:      bot,
		batches:  batches,
		insights: insights,
		metrics:  metrics,
	}, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	go func() {
		<-ctx.Done()
		t.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("Received message from %s (ID: %d): %s",
			update.Message.From.UserName,
			update.Message.From.ID,
			update.Message.Text)

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, t.reply(ctx, update.Message))
		log.Printf("Sending response to user %s", update.Message.From.UserName)
		if _, err := t.bot.Send(msg); err != nil {
			log.Printf("Error sending message: %v", err)
		}
	}
}

// reply produces the answer to a single message
func (t *TelegramBot) reply(ctx context.Context, message *tgbotapi.Message) string {
	if !message.IsCommand() {
		log.Printf("Received non-command message: %s", message.Text)
		answer, err := t.insights.HandleNaturalLanguageQuery(ctx, message.Text)
		if err != nil {
			log.Printf("Error handling free-text query: %v", err)
			return "I don't understand. Use /help to see available commands."
		}
		return answer
	}

	args := strings.Fields(message.CommandArguments())
	log.Printf("Handling /%s command with args %v", message.Command(), args)

	switch message.Command() {
	case "start":
		return "Welcome to the Mushroom Bot! Use /batches to see your batches or /help for more information."
	case "help":
		return helpText
	case "batches":
		return t.handleBatchesCommand(ctx, args)
	case "batch":
		return t.handleBatchCommand(ctx, args)
	case "insights":
		return t.handleInsightsCommand(ctx, args)
	case "compare":
		return t.handleCompareCommand(ctx, args)
	default:
		return "Unknown command. Use /help to see available commands."
	}
}

func (t *TelegramBot) handleBatchesCommand(ctx context.Context, args []string) string {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	batches, err := t.batches.ListBatches(ctx, username)
	if err != nil {
		log.Printf("Error fetching batches: %v", err)
		return "Error fetching batches. Please try again later."
	}
	return usecases.FormatBatchList(batches) + "\nUse /insights [id] to analyze a batch."
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSuffix(a, ","), "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a batch number", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func singleID(args []string, example string) (int64, string) {
	if len(args) != 1 {
		return 0, "Please specify one batch number. Example: " + example
	}
	ids, err := parseIDs(args)
	if err != nil {
		return 0, fmt.Sprintf("Sorry, %v. Example: %s", err, example)
	}
	return ids[0], ""
}

func (t *TelegramBot) handleBatchCommand(ctx context.Context, args []string) string {
	id, problem := singleID(args, "/batch 1")
	if problem != "" {
		return problem
	}
	detail, err := t.batches.GetBatchDetail(ctx, id)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return fmt.Sprintf("No batch #%d found. Use /batches to see the available batches.", id)
	}
	if err != nil {
		log.Printf("Error fetching batch %d: %v", id, err)
		return "Error fetching the batch. Please try again later."
	}
	return formatBatchDetail(detail)
}

func formatBatchDetail(d usecases.BatchDetail) string {
	b := d.Batch
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🍄 Batch #%d (%s)\n", b.ID, b.Username))
	result.WriteString(fmt.Sprintf("Substrate: %s, %.0f%% moisture, %.0f%% spawn rate\n",
		b.SubstrateType, b.SubstrateMoisturePercent, b.SpawnRatePercent))
	result.WriteString(fmt.Sprintf("Started: %s\n", b.StartDate.Format("2006-01-02")))
	result.WriteString(fmt.Sprintf("Observations: %d, harvests: %d\n", len(d.Observations), len(d.Harvests)))

	if len(d.Observations) > 0 {
		o := d.Observations[0]
		result.WriteString(fmt.Sprintf("\n🕒 Latest reading (%s):\n", o.Date.Format("2006-01-02")))
		if o.TemperatureC != nil {
			result.WriteString(fmt.Sprintf("🌡️ %.1f°C\n", *o.TemperatureC))
		}
		if o.HumidityPercent != nil {
			result.WriteString(fmt.Sprintf("💧 %.0f%% RH\n", *o.HumidityPercent))
		}
		if o.CO2.Recorded() {
			result.WriteString(fmt.Sprintf("🌫️ CO2 %s\n", o.CO2))
		}
		if o.LightHours != nil {
			result.WriteString(fmt.Sprintf("💡 %.1f h light\n", *o.LightHours))
		}
	}
	total := 0.0
	for _, h := range d.Harvests {
		total += h.FlushYieldKg
	}
	if len(d.Harvests) > 0 {
		result.WriteString(fmt.Sprintf("\n🧺 Harvested %.2f kg over %d flush(es)", total, len(d.Harvests)))
	}
	return strings.TrimRight(result.String(), "\n")
}

func (t *TelegramBot) handleInsightsCommand(ctx context.Context, args []string) string {
	id, problem := singleID(args, "/insights 1")
	if problem != "" {
		return problem
	}
	report, err := t.insights.GenerateInsights(ctx, id)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return fmt.Sprintf("No batch #%d found. Use /batches to see the available batches.", id)
	}
	if err != nil {
		log.Printf("Error generating insights for batch %d: %v", id, err)
		return "Error analyzing the batch. Please try again later."
	}
	t.metrics.ReportGenerated(len(report.Warnings), len(report.Anomalies), len(report.Suggestions), len(report.Trends))
	return usecases.FormatReport(id, report)
}

func (t *TelegramBot) handleCompareCommand(ctx context.Context, args []string) string {
	ids, err := parseIDs(args)
	if err != nil {
		return fmt.Sprintf("Sorry, %v. Example: /compare 1 2", err)
	}
	c, err := t.insights.CompareBatches(ctx, ids)
	if err != nil {
		log.Printf("Error comparing batches %v: %v", ids, err)
		return "Error comparing batches. Please try again later."
	}
	t.metrics.ComparisonComputed()
	return usecases.FormatComparison(c)
}
