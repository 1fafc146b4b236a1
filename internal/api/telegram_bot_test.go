package api

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var start = time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)

func command(text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func TestTelegramReplies(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	b, err := app.batches.CreateBatch(ctx, entities.Batch{
		Username:                 "Gagan",
		SubstrateType:            "Compost",
		SubstrateMoisturePercent: 68,
		SpawnRatePercent:         5,
		StartDate:                start,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if _, err := app.batches.RecordObservation(ctx, entities.Observation{
		BatchID:         b.ID,
		Date:            start.AddDate(0, 0, 1),
		TemperatureC:    entities.Float(24.5),
		HumidityPercent: entities.Float(85),
		CO2:             entities.CO2Medium,
	}); err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	if _, err := app.batches.RecordHarvest(ctx, entities.Harvest{BatchID: b.ID, FlushNumber: 1, FlushYieldKg: 2.25}); err != nil {
		t.Fatalf("RecordHarvest: %v", err)
	}

	bot := &TelegramBot{batches: app.batches, insights: app.insights, metrics: app.metrics}

	tests := []struct {
		name     string
		msg      *tgbotapi.Message
		contains []string
	}{
		{"help", command("/help"), []string{"/insights [id]", "/compare"}},
		{"start", command("/start"), []string{"Welcome to the Mushroom Bot!"}},
		{"batches", command("/batches Gagan"), []string{"Compost", "/insights [id]"}},
		{"batch detail", command("/batch 1"), []string{"Batch #1 (Gagan)", "24.5°C", "85% RH", "CO2 medium", "Harvested 2.25 kg over 1 flush(es)"}},
		{"batch without id", command("/batch"), []string{"Please specify one batch number. Example: /batch 1"}},
		{"batch with bad id", command("/batch abc"), []string{`"abc" is not a batch number`}},
		{"unknown batch", command("/insights 9"), []string{"No batch #9 found."}},
		{"insights", command("/insights 1"), []string{"Insights for batch #1:"}},
		{"compare needs two", command("/compare 1"), []string{"At least 2 batches are required for comparison."}},
		{"compare missing", command("/compare 1 5"), []string{"Some batches not found: 5"}},
		{"unknown command", command("/weather"), []string{"Unknown command."}},
		{"free text without agent", &tgbotapi.Message{Text: "how is my batch?"}, []string{"/help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bot.reply(ctx, tt.msg)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("reply to %q = %q, want it to contain %q", tt.msg.Text, got, want)
				}
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"#1,", "2"})
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("parseIDs = %v, want [1 2]", ids)
	}
	if _, err := parseIDs([]string{"0"}); err == nil {
		t.Error("expected an error for a zero id")
	}
}
