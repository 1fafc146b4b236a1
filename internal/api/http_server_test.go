package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	"github.com/google/go-cmp/cmp"
)

type testApp struct {
	batches  *usecases.BatchUseCase
	insights *usecases.InsightUseCase
	metrics  *Metrics
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return testApp{
		batches:  usecases.NewBatchUseCase(repo, nil),
		insights: usecases.NewInsightUseCase(repo, insights.NewEngine(insights.DefaultThresholds()), nil),
		metrics:  NewMetrics(),
	}
}

func newTestServer(t *testing.T) (*httptest.Server, testApp) {
	t.Helper()
	app := newTestApp(t)
	srv := httptest.NewServer(NewServer(app.batches, app.insights, app.metrics).Handler([]string{"*"}, io.Discard))
	t.Cleanup(srv.Close)
	return srv, app
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, want, body)
	}
}

func detail(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("error body is not JSON: %s", body)
	}
	return e.Detail
}

const strawBatch = `{"username":"Dhanush","substrate_type":"Straw","substrate_moisture_percent":65,"spawn_rate_percent":5,"start_date":"2025-11-04"}`

func TestCreateAndGetBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/batches", strawBatch)
	expectStatus(t, resp, body, http.StatusCreated)

	var created batchResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.BatchID == 0 || created.SubstrateType != "Straw" || created.StartDate != "2025-11-04" {
		t.Errorf("unexpected batch: %+v", created)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/batches/1/observations",
		`{"date":"2025-11-05","ambient_temperature_celsius":24.5,"relative_humidity_percent":85,"CO2_level":"medium"}`)
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = do(t, srv, http.MethodPost, "/api/batches/1/harvests", `{"flush_number":1,"flush_yield_kg":2.5}`)
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = do(t, srv, http.MethodGet, "/api/batches/1", "")
	expectStatus(t, resp, body, http.StatusOK)

	var got struct {
		BatchID      int64 `json:"batch_id"`
		Observations []struct {
			Date     string   `json:"date"`
			CO2Level *string  `json:"CO2_level"`
			Light    *float64 `json:"light_hours_per_day"`
		} `json:"observations"`
		Harvests []struct {
			FlushYieldKg float64 `json:"flush_yield_kg"`
			Date         *string `json:"date"`
		} `json:"harvests"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BatchID != 1 || len(got.Observations) != 1 || len(got.Harvests) != 1 {
		t.Fatalf("unexpected detail: %s", body)
	}
	if o := got.Observations[0]; o.Date != "2025-11-05" || o.CO2Level == nil || *o.CO2Level != "medium" || o.Light != nil {
		t.Errorf("unexpected observation: %s", body)
	}
	if h := got.Harvests[0]; h.FlushYieldKg != 2.5 || h.Date != nil {
		t.Errorf("unexpected harvest: %s", body)
	}

	resp, body = do(t, srv, http.MethodGet, "/api/batches?username=Dhanush", "")
	expectStatus(t, resp, body, http.StatusOK)
	var list []batchResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d batches for Dhanush, want 1", len(list))
	}
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, srv, http.MethodPost, "/api/batches", strawBatch)
	expectStatus(t, resp, body, http.StatusCreated)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"malformed JSON", http.MethodPost, "/api/batches", `{"substrate_type":`, http.StatusBadRequest, ""},
		{"moisture out of range", http.MethodPost, "/api/batches",
			`{"substrate_type":"Straw","substrate_moisture_percent":120,"spawn_rate_percent":5,"start_date":"2025-11-04"}`,
			http.StatusUnprocessableEntity, "substrate_moisture_percent must be between 0 and 100"},
		{"bad start date", http.MethodPost, "/api/batches",
			`{"substrate_type":"Straw","substrate_moisture_percent":65,"spawn_rate_percent":5,"start_date":"04/11/2025"}`,
			http.StatusUnprocessableEntity, "start_date must be a date in YYYY-MM-DD format"},
		{"unknown batch", http.MethodGet, "/api/batches/99", "", http.StatusNotFound, "Batch with id 99 not found"},
		{"observation on unknown batch", http.MethodPost, "/api/batches/99/observations",
			`{"date":"2025-11-05"}`, http.StatusNotFound, "Batch with id 99 not found"},
		{"invalid CO2 level", http.MethodPost, "/api/batches/1/observations",
			`{"date":"2025-11-05","CO2_level":"extreme"}`, http.StatusUnprocessableEntity, "CO2_level must be low, medium or high"},
		{"harvest without yield", http.MethodPost, "/api/batches/1/harvests",
			`{"flush_number":1}`, http.StatusUnprocessableEntity, "flush_yield_kg is required"},
		{"insights of unknown batch", http.MethodGet, "/api/batches/42/insights", "", http.StatusNotFound, "Batch with id 42 not found"},
		{"compare single batch", http.MethodPost, "/api/batches/compare", `{"batch_ids":[1]}`,
			http.StatusBadRequest, "At least 2 batch IDs are required for comparison"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.body)
			expectStatus(t, resp, body, tt.wantStatus)
			if tt.wantDetail != "" {
				if got := detail(t, body); got != tt.wantDetail {
					t.Errorf("detail = %q, want %q", got, tt.wantDetail)
				}
			}
		})
	}
}

func TestInsightsAndCompareEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	for i := 0; i < 2; i++ {
		resp, body := do(t, srv, http.MethodPost, "/api/batches", strawBatch)
		expectStatus(t, resp, body, http.StatusCreated)
	}

	resp, body := do(t, srv, http.MethodGet, "/api/batches/1/insights", "")
	expectStatus(t, resp, body, http.StatusOK)
	var report insights.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, err := app.insights.GenerateInsights(context.Background(), 1)
	if err != nil {
		t.Fatalf("GenerateInsights: %v", err)
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/batches/compare", `{"batch_ids":[1,2,7]}`)
	expectStatus(t, resp, body, http.StatusOK)
	var c insights.Comparison
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]string{"Some batches not found: 7"}, c.Insights); diff != "" {
		t.Errorf("insights mismatch (-want +got):\n%s", diff)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/batches/compare", `{"batch_ids":[2,1]}`)
	expectStatus(t, resp, body, http.StatusOK)
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(c.YieldComparison) != 2 || c.YieldComparison[0].BatchID != 2 {
		t.Errorf("unexpected yield comparison: %s", body)
	}

	resp, body = do(t, srv, http.MethodGet, "/metrics", "")
	expectStatus(t, resp, body, http.StatusOK)
	for _, line := range []string{
		"insight_reports_total 1",
		"batch_comparisons_total 2",
		`http_requests_total{route="/api/batches",status="201"} 2`,
	} {
		if !bytes.Contains(body, []byte(line)) {
			t.Errorf("metrics output missing %q", line)
		}
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/healthz", "")
	expectStatus(t, resp, body, http.StatusOK)
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/batches", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want echoed abc-123", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
