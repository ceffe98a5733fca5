package forecast

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

const (
	maxFeatures      = 3
	adjustmentFactor = 0.2
)

// Feature is an auxiliary yearly series aligned with Series.Values. Missing
// observations are NaN.
type Feature struct {
	Name   string
	Values []float64
}

// composite is the weighted feature used to adjust the target series.
type composite struct {
	selected []string
	weighted []float64
}

func (c *composite) last() float64 {
	return c.weighted[len(c.weighted)-1]
}

// usable drops features with no observations and fills remaining gaps with zero.
func usable(features []Feature) []Feature {
	var out []Feature
	for _, f := range features {
		filled := make([]float64, len(f.Values))
		seen := false
		for i, v := range f.Values {
			if math.IsNaN(v) {
				continue
			}
			filled[i] = v
			seen = true
		}
		if seen {
			out = append(out, Feature{Name: f.Name, Values: filled})
		}
	}
	return out
}

// zscore normalises x with its sample standard deviation. Constant columns
// are returned unchanged.
func zscore(x []float64) []float64 {
	out := append([]float64(nil), x...)
	if len(x) < 2 {
		return out
	}
	sd, _ := stats.StandardDeviationSample(x)
	if sd <= 0 {
		return out
	}
	mean, _ := stats.Mean(x)
	for i := range out {
		out[i] = (out[i] - mean) / sd
	}
	return out
}

// fScore is the univariate regression F statistic of y on x.
func fScore(x, y []float64) float64 {
	n := float64(len(y))
	r, err := stats.Correlation(x, y)
	if err != nil || math.IsNaN(r) {
		return 0
	}
	r2 := r * r
	if r2 >= 1 {
		return 1e12
	}
	return r2 / (1 - r2) * (n - 2)
}

// selectFeatures picks the k most predictive features and combines them into
// a weighted composite. It returns nil when there is nothing to adjust by.
func selectFeatures(features []Feature, y []float64) *composite {
	k := min(maxFeatures, len(features))
	if k == 0 || len(y) <= k+2 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
		norm  []float64
	}
	all := make([]scored, len(features))
	for i, f := range features {
		norm := zscore(f.Values)
		all[i] = scored{idx: i, score: fScore(norm, y), norm: norm}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })
	top := all[:k]
	sort.Slice(top, func(a, b int) bool { return top[a].idx < top[b].idx })

	total := 0.0
	for _, s := range top {
		total += s.score
	}
	if total <= 0 || math.IsInf(total, 0) {
		return nil
	}

	c := &composite{weighted: make([]float64, len(y))}
	for _, s := range top {
		c.selected = append(c.selected, features[s.idx].Name)
		w := s.score / total
		for i, v := range s.norm {
			c.weighted[i] += w * v
		}
	}
	return c
}

func (c *composite) adjust(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v * (1 + adjustmentFactor*c.weighted[i])
	}
	return out
}

func (c *composite) restore(forecast []float64) []float64 {
	div := 1 + adjustmentFactor*c.last()
	out := make([]float64, len(forecast))
	for i, v := range forecast {
		out[i] = v / div
	}
	return out
}
