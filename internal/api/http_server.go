package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const requestIDHeader = "X-Request-ID"

// Server exposes batches, observations, harvests and insights over HTTP
type Server struct {
	batches  *usecases.BatchUseCase
	insights *usecases.InsightUseCase
	metrics  *Metrics
	router   *mux.Router
}

// NewServer creates the HTTP API and registers its routes
func NewServer(batches *usecases.BatchUseCase, insights *usecases.InsightUseCase, metrics *Metrics) *Server {
	s := &Server{
		batches:  batches,
		insights: insights,
		metrics:  metrics,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	handle := func(route, method string, h http.HandlerFunc) {
		r.Handle(route, s.metrics.WrapHandler(route, h)).Methods(method)
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	handle("/api/batches", http.MethodGet, s.listBatches)
	handle("/api/batches", http.MethodPost, s.createBatch)
	handle("/api/batches/compare", http.MethodPost, s.compareBatches)
	handle("/api/batches/{id:[0-9]+}", http.MethodGet, s.getBatch)
	handle("/api/batches/{id:[0-9]+}/observations", http.MethodGet, s.listObservations)
	handle("/api/batches/{id:[0-9]+}/observations", http.MethodPost, s.recordObservation)
	handle("/api/batches/{id:[0-9]+}/harvests", http.MethodGet, s.listHarvests)
	handle("/api/batches/{id:[0-9]+}/harvests", http.MethodPost, s.recordHarvest)
	handle("/api/batches/{id:[0-9]+}/insights", http.MethodGet, s.batchInsights)
}

// Handler returns the router wrapped with request ids, CORS and access logging
func (s *Server) Handler(corsOrigins []string, accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	return handlers.LoggingHandler(accessLog, withRequestID(cors(s.router)))
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// fail maps use case errors onto HTTP statuses
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *usecases.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, repository.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Batch with id %s not found", mux.Vars(r)["id"]))
	default:
		log.Printf("Request %s %s failed [%s]: %v", r.Method, r.URL.Path, r.Header.Get(requestIDHeader), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

func batchID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func parseDate(field, value string, required bool) (time.Time, error) {
	if value == "" {
		if required {
			return time.Time{}, &usecases.ValidationError{Field: field, Reason: "is required"}
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(entities.DateLayout, value)
	if err != nil {
		return time.Time{}, &usecases.ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.batches.ListBatches(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchList(batches))
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.SubstrateMoisturePercent == nil || req.SpawnRatePercent == nil {
		s.fail(w, r, &usecases.ValidationError{Field: "substrate_moisture_percent and spawn_rate_percent", Reason: "are required"})
		return
	}

	b, err := s.batches.CreateBatch(r.Context(), entities.Batch{
		Username:                 req.Username,
		SubstrateType:            req.SubstrateType,
		SubstrateMoisturePercent: *req.SubstrateMoisturePercent,
		SpawnRatePercent:         *req.SpawnRatePercent,
		StartDate:                start,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(b))
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	detail, err := s.batches.GetBatchDetail(r.Context(), batchID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDetail(detail))
}

func (s *Server) listObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := s.batches.ListObservations(r.Context(), batchID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObservationList(obs))
}

func (s *Server) recordObservation(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	co2, err := entities.ParseCO2Level(req.CO2Level)
	if err != nil {
		s.fail(w, r, &usecases.ValidationError{Field: "CO2_level", Reason: "must be low, medium or high"})
		return
	}

	o, err := s.batches.RecordObservation(r.Context(), entities.Observation{
		BatchID:         batchID(r),
		Date:            date,
		TemperatureC:    req.TemperatureC,
		HumidityPercent: req.HumidityPercent,
		CO2:             co2,
		LightHours:      req.LightHours,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toObservationResponse(o))
}

func (s *Server) listHarvests(w http.ResponseWriter, r *http.Request) {
	harvests, err := s.batches.ListHarvests(r.Context(), batchID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHarvestList(harvests))
}

func (s *Server) recordHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FlushYieldKg == nil {
		s.fail(w, r, &usecases.ValidationError{Field: "flush_yield_kg", Reason: "is required"})
		return
	}
	date, err := parseDate("date", req.Date, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	h, err := s.batches.RecordHarvest(r.Context(), entities.Harvest{
		BatchID:           batchID(r),
		FlushNumber:       req.FlushNumber,
		FlushYieldKg:      *req.FlushYieldKg,
		TotalBatchYieldKg: req.TotalBatchYieldKg,
		Date:              date,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHarvestResponse(h))
}

func (s *Server) batchInsights(w http.ResponseWriter, r *http.Request) {
	report, err := s.insights.GenerateInsights(r.Context(), batchID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ReportGenerated(len(report.Warnings), len(report.Anomalies), len(report.Suggestions), len(report.Trends))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) compareBatches(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.BatchIDs) < 2 {
		writeError(w, http.StatusBadRequest, "At least 2 batch IDs are required for comparison")
		return
	}

	c, err := s.insights.CompareBatches(r.Context(), req.BatchIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ComparisonComputed()
	writeJSON(w, http.StatusOK, c)
}
