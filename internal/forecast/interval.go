package forecast

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// smallSample is the size below which Student's t replaces the normal quantile.
const smallSample = 30

// criticalValue returns the two-sided quantile for a confidence level.
func criticalValue(n int, level float64) float64 {
	p := 1 - (1-level)/2
	if n < smallSample {
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
		return t.Quantile(p)
	}
	return distuv.UnitNormal.Quantile(p)
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// bands widens margin by growth around each point forecast.
func bands(values []float64, margin float64, growth []float64) (lower, upper []float64) {
	lower = make([]float64, len(values))
	upper = make([]float64, len(values))
	for i, v := range values {
		lower[i] = v - margin*growth[i]
		upper[i] = v + margin*growth[i]
	}
	return lower, upper
}

// residualSpread is the population standard deviation of the residuals.
func residualSpread(resid []float64) float64 {
	if len(resid) == 0 {
		return 0
	}
	sd, _ := stats.StandardDeviationPopulation(resid)
	return sd
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
