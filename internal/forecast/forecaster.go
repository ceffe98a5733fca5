// Package forecast projects yearly emission totals with ARIMA models and
// degrades to simpler models when the data does not support a full fit.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	// MinPoints is the shortest history the enhanced model accepts.
	MinPoints = 5

	TypeEnhanced  = "Enhanced ARIMA"
	TypeFallback  = "Fallback ARIMA(1,1,0)"
	TypeEmergency = "Linear Trend (Emergency Fallback)"

	outlierThreshold = 2.5
)

var fallbackOrder = Order{1, 1, 0}

// ErrNoData is returned for an empty series or a non-positive horizon.
var ErrNoData = errors.New("forecast needs at least one observation and a positive horizon")

// Series is a yearly history with optional auxiliary features.
type Series struct {
	Years    []int
	Values   []float64
	Features []Feature
}

// Options tune a forecast run.
type Options struct {
	Horizon         int
	ConfidenceLevel float64
	CleanOutliers   bool
}

// Projection holds point forecasts and their interval bounds.
type Projection struct {
	Years           []int     `json:"years"`
	Values          []float64 `json:"values"`
	LowerCI         []float64 `json:"lower_ci"`
	UpperCI         []float64 `json:"upper_ci"`
	ConfidenceLevel float64   `json:"confidence_level"`
}

// ModelInfo describes the model that produced a projection.
type ModelInfo struct {
	Type             string   `json:"type"`
	Order            *Order   `json:"order"`
	FeatureCount     int      `json:"feature_count"`
	SelectedFeatures []string `json:"selected_features"`
	DataPoints       int      `json:"data_points"`
}

// Label is the model type followed by its order, if any.
func (m ModelInfo) Label() string {
	if m.Order == nil {
		return m.Type
	}
	return m.Type + m.Order.String()
}

// Metrics are in-sample fit statistics rounded to two decimals.
type Metrics struct {
	AIC            float64 `json:"AIC"`
	BIC            float64 `json:"BIC"`
	RMSE           float64 `json:"RMSE"`
	MAE            float64 `json:"MAE"`
	ResidualStdDev float64 `json:"Residual_StdDev"`
}

// History is the observed series.
type History struct {
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

// Result is a complete forecast.
type Result struct {
	Forecast   Projection           `json:"forecast"`
	Model      ModelInfo            `json:"model_info"`
	Metrics    *Metrics             `json:"metrics,omitempty"`
	Historical History              `json:"historical_data"`
	Benchmarks map[string][]float64 `json:"benchmarks,omitempty"`
}

// Generate forecasts opts.Horizon years past the last year of s. The enhanced
// model is tried first; failures fall back to ARIMA(1,1,0) and then to a
// linear trend, so an error is only returned for unusable input.
func Generate(s Series, opts Options, log *zap.Logger) (*Result, error) {
	if len(s.Values) == 0 || len(s.Years) != len(s.Values) || opts.Horizon < 1 {
		return nil, ErrNoData
	}
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		opts.ConfidenceLevel = 0.95
	}
	if log == nil {
		log = zap.NewNop()
	}

	values := s.Values
	if opts.CleanOutliers {
		values = cleanOutliers(values, log)
	}

	var res *Result
	if len(values) < MinPoints {
		res = fallback(values, opts, log)
	} else {
		var err error
		res, err = enhanced(values, s.Features, opts, log)
		if err != nil {
			log.Error("enhanced forecast failed", zap.Error(err))
			res = fallback(values, opts, log)
		}
	}

	last := s.Years[0]
	for _, y := range s.Years {
		last = max(last, y)
	}
	res.Forecast.Years = make([]int, opts.Horizon)
	for i := range res.Forecast.Years {
		res.Forecast.Years[i] = last + i + 1
	}
	res.Forecast.ConfidenceLevel = opts.ConfidenceLevel
	res.Model.DataPoints = len(values)
	if res.Model.SelectedFeatures == nil {
		res.Model.SelectedFeatures = []string{}
	}
	res.Historical = History{Years: append([]int(nil), s.Years...), Values: append([]float64(nil), s.Values...)}
	res.Benchmarks = Benchmarks(s.Years, s.Values, res.Forecast.Years)
	return res, nil
}

func enhanced(y []float64, features []Feature, opts Options, log *zap.Logger) (*Result, error) {
	for _, f := range features {
		if len(f.Values) != len(y) {
			return nil, fmt.Errorf("feature %s has %d values for %d years", f.Name, len(f.Values), len(y))
		}
	}
	features = usable(features)

	adjusted := y
	comp := selectFeatures(features, y)
	if comp != nil {
		adjusted = comp.adjust(y)
	}

	order := bestOrder(adjusted, func(o Order, aic float64, err error) {
		if err != nil {
			log.Warn("could not fit arima", zap.Stringer("order", o), zap.Error(err))
			return
		}
		log.Debug("arima candidate", zap.Stringer("order", o), zap.Float64("aic", aic))
	})
	log.Info("selected arima order", zap.Stringer("order", order))

	fit, err := fitARIMA(adjusted, order)
	if err != nil {
		return nil, err
	}
	values, err := fit.forecast(opts.Horizon)
	if err != nil {
		return nil, err
	}
	if comp != nil {
		values = comp.restore(values)
	}
	if !finite(values...) {
		return nil, fmt.Errorf("arima%s: non-finite forecast after feature restore", order)
	}

	q := criticalValue(len(y), opts.ConfidenceLevel)
	sigma := residualSpread(fit.resid)
	growth := linspace(1, math.Min(2, 1+0.1*float64(opts.Horizon)), opts.Horizon)
	lower, upper := bands(values, q*sigma, growth)

	info := ModelInfo{Type: TypeEnhanced, Order: &order, FeatureCount: len(features)}
	if comp != nil {
		info.SelectedFeatures = comp.selected
	}
	return &Result{
		Forecast: Projection{Values: values, LowerCI: lower, UpperCI: upper},
		Model:    info,
		Metrics:  fitMetrics(fit),
	}, nil
}

// fallback fits ARIMA(1,1,0) on the raw series, or extrapolates a linear
// trend when even that fails.
func fallback(y []float64, opts Options, log *zap.Logger) *Result {
	fit, err := fitARIMA(y, fallbackOrder)
	var values []float64
	if err == nil {
		values, err = fit.forecast(opts.Horizon)
	}
	if err != nil {
		log.Error("fallback forecast also failed", zap.Error(err))
		return emergency(y, opts)
	}

	var sigma float64
	if len(fit.resid) > 0 {
		sigma = residualSpread(fit.resid)
	} else {
		sigma = residualSpread(y) * 0.1
	}
	lower, upper := bands(values, 1.96*sigma, linspace(1, 2, opts.Horizon))

	order := fallbackOrder
	return &Result{
		Forecast: Projection{Values: values, LowerCI: lower, UpperCI: upper},
		Model:    ModelInfo{Type: TypeFallback, Order: &order},
		Metrics:  fitMetrics(fit),
	}
}

func emergency(y []float64, opts Options) *Result {
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	slope, intercept := linearFit(x, y)

	n := float64(len(y))
	margin := residualSpread(y) * 2
	values := make([]float64, opts.Horizon)
	lower := make([]float64, opts.Horizon)
	upper := make([]float64, opts.Horizon)
	for i := range values {
		v := slope*(n+float64(i)) + intercept
		w := margin * (1 + float64(i)*0.2)
		values[i], lower[i], upper[i] = v, v-w, v+w
	}
	return &Result{
		Forecast: Projection{Values: values, LowerCI: lower, UpperCI: upper},
		Model:    ModelInfo{Type: TypeEmergency},
	}
}

// linearFit is the least squares line through (x, y). A single point or
// constant x yields a flat line through the mean.
func linearFit(x, y []float64) (slope, intercept float64) {
	mx, _ := stats.Mean(x)
	my, _ := stats.Mean(y)
	var sxy, sxx float64
	for i := range x {
		sxy += (x[i] - mx) * (y[i] - my)
		sxx += (x[i] - mx) * (x[i] - mx)
	}
	if sxx == 0 {
		return 0, my
	}
	slope = sxy / sxx
	return slope, my - slope*mx
}

func round2(x float64) float64 {
	if !finite(x) {
		return 0
	}
	return math.Round(x*100) / 100
}

func fitMetrics(f *arimaFit) *Metrics {
	var sq, abs float64
	for _, e := range f.resid {
		sq += e * e
		abs += math.Abs(e)
	}
	n := float64(len(f.resid))
	return &Metrics{
		AIC:            round2(f.aic),
		BIC:            round2(f.bic),
		RMSE:           round2(math.Sqrt(sq / n)),
		MAE:            round2(abs / n),
		ResidualStdDev: round2(residualSpread(f.resid)),
	}
}

// cleanOutliers replaces points more than 2.5 sample standard deviations from
// the mean with the median.
func cleanOutliers(y []float64, log *zap.Logger) []float64 {
	if len(y) < 3 {
		return y
	}
	mean, _ := stats.Mean(y)
	sd, _ := stats.StandardDeviationSample(y)
	if sd == 0 {
		return y
	}
	median, _ := stats.Median(y)

	out := append([]float64(nil), y...)
	found := 0
	for i, v := range y {
		if math.Abs((v-mean)/sd) > outlierThreshold {
			out[i] = median
			found++
		}
	}
	if found > 0 {
		log.Info("replaced outliers", zap.Int("count", found))
	}
	return out
}

// Benchmarks returns simple reference forecasts for years: the mean of the
// last three values, a linear trend over the observed years, and the last
// value carried forward.
func Benchmarks(years []int, values []float64, forecastYears []int) map[string][]float64 {
	if len(values) == 0 {
		return nil
	}
	tail := values[max(0, len(values)-3):]
	avg, _ := stats.Mean(tail)

	x := make([]float64, len(years))
	for i, yr := range years {
		x[i] = float64(yr)
	}
	slope, intercept := linearFit(x, values)

	out := map[string][]float64{
		"avg":   make([]float64, len(forecastYears)),
		"trend": make([]float64, len(forecastYears)),
		"naive": make([]float64, len(forecastYears)),
	}
	for i, yr := range forecastYears {
		out["avg"][i] = avg
		out["trend"][i] = slope*float64(yr) + intercept
		out["naive"][i] = values[len(values)-1]
	}
	return out
}
