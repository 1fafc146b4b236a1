// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// ClimateScraper reads daily grow-room climate logs from the logger's HTML report.
// The report is a table whose rows carry batch id, date, temperature,
// humidity, CO2 level and light hours; blank or "-" cells are missing readings.
type ClimateScraper struct {
	sourceURL  string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries uint64
	retryStart time.Duration
}

// NewClimateScraper creates a scraper for the report at url
func NewClimateScraper(url string, timeout time.Duration) *ClimateScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClimateScraper{
		sourceURL: url,
		client:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "climate-logger",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
			},
		}),
		maxRetries: 3,
		retryStart: 500 * time.Millisecond,
	}
}

// FetchReadings downloads the report and returns one observation per valid row.
// Transient failures are retried with exponential backoff; repeated failures
// open the circuit breaker and later calls fail fast until it recovers.
func (cs *ClimateScraper) FetchReadings(ctx context.Context) ([]entities.Observation, error) {
	res, err := cs.breaker.Execute(func() (interface{}, error) {
		return cs.fetchWithRetry(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]entities.Observation), nil
}

func (cs *ClimateScraper) fetchWithRetry(ctx context.Context) ([]entities.Observation, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cs.retryStart
	bo.MaxElapsedTime = time.Minute

	var readings []entities.Observation
	err := backoff.Retry(func() error {
		var err error
		readings, err = cs.fetch(ctx)
		if err != nil {
			log.Printf("Error fetching climate report: %v", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cs.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch climate report from %s: %w", cs.sourceURL, err)
	}
	return readings, nil
}

func (cs *ClimateScraper) fetch(ctx context.Context) ([]entities.Observation, error) {
	log.Printf("Sending HTTP request to climate logger")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cs.sourceURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	res, err := cs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the webpage: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		err := fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the webpage: %w", err)
	}
	return ParseClimateTable(doc), nil
}

// ParseClimateTable extracts observations from the report rows, skipping rows
// without a usable batch id or date
func ParseClimateTable(doc *goquery.Document) []entities.Observation {
	var data []entities.Observation
	rowCount := 0

	doc.Find("table tbody tr").Each(func(index int, row *goquery.Selection) {
		rowCount++
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		cell := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }

		batchID, err := strconv.ParseInt(cell(0), 10, 64)
		if err != nil || batchID <= 0 {
			log.Printf("Skipping row %d: invalid batch id %q", index, cell(0))
			return
		}
		date, err := time.Parse(entities.DateLayout, cell(1))
		if err != nil {
			log.Printf("Skipping row %d: invalid date %q", index, cell(1))
			return
		}
		co2, err := entities.ParseCO2Level(missingAsEmpty(cell(4)))
		if err != nil {
			log.Printf("Row %d: %v", index, err)
		}

		data = append(data, entities.Observation{
			BatchID:         batchID,
			Date:            date,
			TemperatureC:    parseReading(cell(2), "°C", "C"),
			HumidityPercent: parseReading(cell(3), "%"),
			CO2:             co2,
			LightHours:      parseReading(cell(5), "h"),
		})
	})

	log.Printf("Parsed %d rows, extracted %d climate readings", rowCount, len(data))
	return data
}

func missingAsEmpty(s string) string {
	if s == "-" || s == "—" {
		return ""
	}
	return s
}

// parseReading accepts "24.5", "24,5" or "24.5 °C"; anything else is missing
func parseReading(s string, units ...string) *float64 {
	s = missingAsEmpty(s)
	for _, u := range units {
		s = strings.TrimSpace(strings.TrimSuffix(s, u))
	}
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		log.Printf("Ignoring unreadable value %q", s)
		return nil
	}
	return &v
}
