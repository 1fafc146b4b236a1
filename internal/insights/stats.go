package insights

import (
	"math"

	"github.com/abelzeko/mushroom-bot/internal/entities"
)

// mean of a non-empty sample.
func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// bounds returns min and max of a non-empty sample.
func bounds(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// spread is max-min, 0 for fewer than two readings.
func spread(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	lo, hi := bounds(xs)
	return hi - lo
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// readings collects the recorded values of one optional field, keeping order.
func readings(obs []entities.Observation, field func(entities.Observation) *float64) []float64 {
	var out []float64
	for _, o := range obs {
		if v := field(o); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func temperatureOf(o entities.Observation) *float64 { return o.TemperatureC }
func humidityOf(o entities.Observation) *float64    { return o.HumidityPercent }
func lightOf(o entities.Observation) *float64       { return o.LightHours }

func fold[T, A any](xs []T, acc A, step func(A, T) A) A {
	for _, x := range xs {
		acc = step(acc, x)
	}
	return acc
}

type run struct{ current, longest int }

// longestRun is the length of the longest stretch of consecutive elements
// satisfying match.
func longestRun[T any](xs []T, match func(T) bool) int {
	return fold(xs, run{}, func(r run, x T) run {
		if !match(x) {
			return run{longest: r.longest}
		}
		r.current++
		r.longest = max(r.longest, r.current)
		return r
	}).longest
}
