// Package insights derives rule-based findings about a cultivation batch from
// its observations and harvests, and compares batches against each other.
//
// The engine is a pure function of its inputs: it holds only immutable
// thresholds, never mutates the snapshots it is given and performs no I/O,
// so a single Engine may be shared by concurrent callers.
package insights

import (
	"sort"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

// Engine analyzes batch snapshots against a fixed set of thresholds.
type Engine struct {
	th Thresholds
}

// NewEngine returns an engine using th for every analysis. th is used as
// given: callers must check it with Thresholds.Validate first, since zero
// trend windows or bands silently suppress findings.
func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Thresholds returns the thresholds the engine was built with.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// Snapshot is the data one analysis runs over. AllBatches and AllHarvests are
// the population used as the historical baseline; they may include Batch.
type Snapshot struct {
	Batch        entities.Batch
	Observations []entities.Observation
	Harvests     []entities.Harvest
	AllBatches   []entities.Batch
	AllHarvests  []entities.Harvest
}

// Report is the outcome of analyzing one batch.
type Report struct {
	Warnings    []string `json:"warnings"`
	Anomalies   []string `json:"anomalies"`
	Suggestions []string `json:"suggestions"`
	Trends      []string `json:"trends"`
	Summary     string   `json:"summary"`
}

type findings struct {
	warnings    []string
	anomalies   []string
	suggestions []string
	trends      []string
}

func (f *findings) merge(o findings) {
	f.warnings = append(f.warnings, o.warnings...)
	f.anomalies = append(f.anomalies, o.anomalies...)
	f.suggestions = append(f.suggestions, o.suggestions...)
	f.trends = append(f.trends, o.trends...)
}

// Analyze produces warnings, anomalies, suggestions, trends and a summary for
// s.Batch. Missing data yields empty sections, never an error.
func (e *Engine) Analyze(s Snapshot) Report {
	obs := sortedObservations(s.Observations)
	harvests := sortedHarvests(s.Harvests)

	var f findings
	if len(obs) > 0 {
		f.merge(e.analyzeObservations(obs))
	}
	if len(harvests) > 0 {
		f.merge(e.analyzeHarvests(harvests, s.Batch, s.AllBatches, s.AllHarvests))
	}

	return Report{
		Warnings:    nonNil(f.warnings),
		Anomalies:   nonNil(f.anomalies),
		Suggestions: nonNil(f.suggestions),
		Trends:      nonNil(f.trends),
		Summary:     e.summarize(s.Batch, obs, harvests, f),
	}
}

func sortedObservations(in []entities.Observation) []entities.Observation {
	out := append([]entities.Observation(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sortedHarvests(in []entities.Harvest) []entities.Harvest {
	out := append([]entities.Harvest(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FlushNumber < out[j].FlushNumber })
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
