package api

import (
	"time"

	"github.com/abelzeko/mushroom-bot/internal/entities"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
)

type batchRequest struct {
	Username                 string   `json:"username"`
	SubstrateType            string   `json:"substrate_type"`
	SubstrateMoisturePercent *float64 `json:"substrate_moisture_percent"`
	SpawnRatePercent         *float64 `json:"spawn_rate_percent"`
	StartDate                string   `json:"start_date"`
}

type observationRequest struct {
	Date            string   `json:"date"`
	TemperatureC    *float64 `json:"ambient_temperature_celsius"`
	HumidityPercent *float64 `json:"relative_humidity_percent"`
	CO2Level        string   `json:"CO2_level"`
	LightHours      *float64 `json:"light_hours_per_day"`
}

type harvestRequest struct {
	FlushNumber       int      `json:"flush_number"`
	FlushYieldKg      *float64 `json:"flush_yield_kg"`
	TotalBatchYieldKg *float64 `json:"total_batch_yield_kg"`
	Date              string   `json:"date"`
}

type compareRequest struct {
	BatchIDs []int64 `json:"batch_ids"`
}

type batchResponse struct {
	BatchID                  int64     `json:"batch_id"`
	Username                 string    `json:"username"`
	SubstrateType            string    `json:"substrate_type"`
	SubstrateMoisturePercent float64   `json:"substrate_moisture_percent"`
	SpawnRatePercent         float64   `json:"spawn_rate_percent"`
	StartDate                string    `json:"start_date"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

type batchDetailResponse struct {
	batchResponse
	Observations []observationResponse `json:"observations"`
	Harvests     []harvestResponse     `json:"harvests"`
}

type observationResponse struct {
	ID              int64    `json:"id"`
	BatchID         int64    `json:"batch_id"`
	Date            string   `json:"date"`
	TemperatureC    *float64 `json:"ambient_temperature_celsius"`
	HumidityPercent *float64 `json:"relative_humidity_percent"`
	CO2Level        *string  `json:"CO2_level"`
	LightHours      *float64 `json:"light_hours_per_day"`
}

type harvestResponse struct {
	ID                int64    `json:"id"`
	BatchID           int64    `json:"batch_id"`
	FlushNumber       int      `json:"flush_number"`
	FlushYieldKg      float64  `json:"flush_yield_kg"`
	TotalBatchYieldKg *float64 `json:"total_batch_yield_kg"`
	Date              *string  `json:"date"`
}

func toBatchResponse(b entities.Batch) batchResponse {
	return batchResponse{
		BatchID:                  b.ID,
		Username:                 b.Username,
		SubstrateType:            b.SubstrateType,
		SubstrateMoisturePercent: b.SubstrateMoisturePercent,
		SpawnRatePercent:         b.SpawnRatePercent,
		StartDate:                b.StartDate.Format(entities.DateLayout),
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
}

func toBatchList(batches []entities.Batch) []batchResponse {
	out := make([]batchResponse, len(batches))
	for i, b := range batches {
		out[i] = toBatchResponse(b)
	}
	return out
}

func toBatchDetail(d usecases.BatchDetail) batchDetailResponse {
	return batchDetailResponse{
		batchResponse: toBatchResponse(d.Batch),
		Observations:  toObservationList(d.Observations),
		Harvests:      toHarvestList(d.Harvests),
	}
}

func toObservationResponse(o entities.Observation) observationResponse {
	resp := observationResponse{
		ID:              o.ID,
		BatchID:         o.BatchID,
		Date:            o.Date.Format(entities.DateLayout),
		TemperatureC:    o.TemperatureC,
		HumidityPercent: o.HumidityPercent,
		LightHours:      o.LightHours,
	}
	if o.CO2.Recorded() {
		level := o.CO2.String()
		resp.CO2Level = &level
	}
	return resp
}

func toObservationList(obs []entities.Observation) []observationResponse {
	out := make([]observationResponse, len(obs))
	for i, o := range obs {
		out[i] = toObservationResponse(o)
	}
	return out
}

func toHarvestResponse(h entities.Harvest) harvestResponse {
	resp := harvestResponse{
		ID:                h.ID,
		BatchID:           h.BatchID,
		FlushNumber:       h.FlushNumber,
		FlushYieldKg:      h.FlushYieldKg,
		TotalBatchYieldKg: h.TotalBatchYieldKg,
	}
	if !h.Date.IsZero() {
		d := h.Date.Format(entities.DateLayout)
		resp.Date = &d
	}
	return resp
}

func toHarvestList(harvests []entities.Harvest) []harvestResponse {
	out := make([]harvestResponse, len(harvests))
	for i, h := range harvests {
		out[i] = toHarvestResponse(h)
	}
	return out
}
