package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/common"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/viz"
)

// ErrInsufficientHistory is returned when fewer than MinPoints years exist
// even after dropping the region filter.
var ErrInsufficientHistory = errors.New("Insufficient historical data for forecasting. Need at least 5 years of data.")

// Columns of a forecast result.
var Columns = []string{"year", "emissions", "type", "lower_ci", "upper_ci"}

// Querier runs read-only SQL.
type Querier interface {
	Execute(ctx context.Context, query string, args ...any) (*sqlitedb.Result, error)
}

// Metadata describes how a forecast was produced.
type Metadata struct {
	IsForecast    bool                 `json:"is_forecast"`
	ForecastYears int                  `json:"forecast_years"`
	Metrics       *Metrics             `json:"metrics"`
	ModelInfo     ModelInfo            `json:"model_info"`
	Parameters    Request              `json:"parameters"`
	Historical    History              `json:"historical_data"`
	Benchmarks    map[string][]float64 `json:"benchmarks,omitempty"`
}

// Outcome is a forecast ready to be returned to a client.
type Outcome struct {
	SQL           string
	Result        *sqlitedb.Result
	Insight       string
	Visualization *viz.Spec
	Metadata      Metadata
}

// Executor loads history from the emissions database and forecasts it.
type Executor struct {
	db   Querier
	opts Options
	log  *zap.Logger
}

// NewExecutor builds an Executor. opts.Horizon is ignored; each request
// carries its own.
func NewExecutor(db Querier, opts Options, log *zap.Logger) *Executor {
	return &Executor{db: db, opts: opts, log: log}
}

// Run answers a detected forecast request.
func (e *Executor) Run(ctx context.Context, req Request) (*Outcome, error) {
	sql, args := BuildQuery(req)
	res, err := e.db.Execute(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	if len(res.Data) < MinPoints && req.Region != "" {
		e.log.Info("too little regional history, retrying without region",
			zap.String("region", req.Region), zap.Int("rows", len(res.Data)))
		req.Region = ""
		sql, args = BuildQuery(req)
		if res, err = e.db.Execute(ctx, sql, args...); err != nil {
			return nil, err
		}
	}
	if len(res.Data) < MinPoints {
		return nil, ErrInsufficientHistory
	}

	series, err := seriesFrom(res)
	if err != nil {
		return nil, fmt.Errorf("Error generating forecast: %w", err)
	}
	opts := e.opts
	opts.Horizon = req.Horizon
	fc, err := Generate(series, opts, e.log)
	if err != nil {
		return nil, fmt.Errorf("Error generating forecast: %w", err)
	}

	data := make([][]any, 0, len(series.Years)+len(fc.Forecast.Years))
	for i, y := range series.Years {
		data = append(data, []any{y, series.Values[i], "Historical", nil, nil})
	}
	for i, y := range fc.Forecast.Years {
		data = append(data, []any{y, fc.Forecast.Values[i], "Forecast", fc.Forecast.LowerCI[i], fc.Forecast.UpperCI[i]})
	}

	title := Title(req)
	spec, err := viz.Forecast(title, Columns, data, &viz.Note{Model: fc.Model.Label(), Features: fc.Model.SelectedFeatures})
	if err != nil {
		e.log.Warn("forecast plot failed", zap.Error(err))
	}

	e.log.Info("forecast generated",
		zap.String("model", fc.Model.Label()),
		zap.Int("history", len(series.Years)),
		zap.Int("horizon", req.Horizon))

	return &Outcome{
		SQL:           sql,
		Result:        &sqlitedb.Result{Columns: Columns, Data: data},
		Insight:       Explain(fc),
		Visualization: spec,
		Metadata: Metadata{
			IsForecast:    true,
			ForecastYears: req.Horizon,
			Metrics:       fc.Metrics,
			ModelInfo:     fc.Model,
			Parameters:    req,
			Historical:    fc.Historical,
			Benchmarks:    fc.Benchmarks,
		},
	}, nil
}

// Title names a forecast chart, e.g. "CO₂ Emissions for Texas Forecast".
func Title(req Request) string {
	parts := []string{req.EmissionType, "Emissions"}
	if req.EmissionType == "" {
		parts[0] = TotalGreenhouseGas
	}
	if req.Region != "" {
		parts = append(parts, "for "+req.Region)
	}
	return strings.Join(append(parts, "Forecast"), " ")
}

// seriesFrom reads year, total_emissions and any further numeric columns.
func seriesFrom(res *sqlitedb.Result) (Series, error) {
	yearIdx := slices.Index(res.Columns, "year")
	totalIdx := slices.Index(res.Columns, "total_emissions")
	if yearIdx < 0 || totalIdx < 0 {
		return Series{}, fmt.Errorf("history needs year and total_emissions columns, got %v", res.Columns)
	}

	var s Series
	featIdx := map[int]int{}
	for i, c := range res.Columns {
		if i == yearIdx || i == totalIdx {
			continue
		}
		featIdx[i] = len(s.Features)
		s.Features = append(s.Features, Feature{Name: c})
	}

	for _, row := range res.Data {
		y, ok := common.ToFloat(row[yearIdx])
		if !ok {
			return Series{}, fmt.Errorf("non-numeric year %v", row[yearIdx])
		}
		v, ok := common.ToFloat(row[totalIdx])
		if !ok {
			v = 0
		}
		s.Years = append(s.Years, int(y))
		s.Values = append(s.Values, v)
		for i, fi := range featIdx {
			fv, ok := common.ToFloat(row[i])
			if !ok {
				fv = math.NaN()
			}
			s.Features[fi].Values = append(s.Features[fi].Values, fv)
		}
	}
	return s, nil
}
