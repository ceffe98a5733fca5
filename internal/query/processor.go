// Package query answers a natural-language question end to end: forecast
// detection, classification, plan execution, charting and insights.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/classify"
	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/forecast"
	"github.com/i474232898/climategpt-servers/internal/insight"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/store"
	"github.com/i474232898/climategpt-servers/internal/viz"
)

// Response types.
const (
	TypeGeneralKnowledge = classify.GeneralKnowledge
	TypeDatabase         = classify.Database
	TypeError            = "error"
)

const noAnswer = "I don't have specific information on that topic."

var (
	ErrInvalidFormat = errors.New("Invalid response format from ClimateGPT")
	ErrNoSteps       = errors.New("No query steps provided")
	ErrNoResults     = errors.New("No results were generated from the execution plan")
)

// Metadata identifies which server produced a response.
type Metadata struct {
	ServerUsed string `json:"server_used,omitempty"`
}

// Response is the processed answer to one query.
type Response struct {
	Type             string             `json:"type"`
	Answer           string             `json:"answer,omitempty"`
	Results          *sqlitedb.Result   `json:"results,omitempty"`
	Insights         string             `json:"insights,omitempty"`
	Plan             *classify.Plan     `json:"plan,omitempty"`
	Visualization    *viz.Spec          `json:"visualization,omitempty"`
	ForecastMetadata *forecast.Metadata `json:"forecast_metadata,omitempty"`
	Error            string             `json:"error,omitempty"`
	ExecutionTime    float64            `json:"execution_time"`
	Metadata         Metadata           `json:"metadata"`
}

// FinalSQL returns the SQL of the plan's last step.
func (r *Response) FinalSQL() string {
	if r.Plan == nil || len(r.Plan.Steps) == 0 {
		return ""
	}
	return r.Plan.Steps[len(r.Plan.Steps)-1].SQL
}

// Classifier decides how a question is answered.
type Classifier interface {
	Classify(ctx context.Context, query string) (*classify.Classification, error)
}

// Database runs read-only SQL.
type Database interface {
	Execute(ctx context.Context, query string, args ...any) (*sqlitedb.Result, error)
}

// Insights narrates a query result.
type Insights interface {
	Generate(ctx context.Context, query, sql string, res *sqlitedb.Result) string
}

// Forecaster answers detected forecast requests.
type Forecaster interface {
	Run(ctx context.Context, req forecast.Request) (*forecast.Outcome, error)
}

// Processor answers questions for one dataset server.
type Processor struct {
	profile    *dataset.Profile
	classifier Classifier
	db         Database
	insights   Insights
	forecaster Forecaster
	cache      *store.MemoryStore[*Response]
	stats      *Stats
	log        *zap.Logger
}

// Deps are the collaborators of a Processor. Forecaster may be nil.
type Deps struct {
	Profile    *dataset.Profile
	Classifier Classifier
	DB         Database
	Insights   Insights
	Forecaster Forecaster
	Cache      *store.MemoryStore[*Response]
	Stats      *Stats
	Log        *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(d Deps) *Processor {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Stats == nil {
		d.Stats = NewStats(d.Profile.Server)
	}
	return &Processor{
		profile:    d.Profile,
		classifier: d.Classifier,
		db:         d.DB,
		insights:   d.Insights,
		forecaster: d.Forecaster,
		cache:      d.Cache,
		stats:      d.Stats,
		log:        d.Log,
	}
}

// Stats returns the processor's counters.
func (p *Processor) Stats() *Stats { return p.stats }

// Process answers query. Failures are reported as a TypeError response.
func (p *Processor) Process(ctx context.Context, query string) *Response {
	start := time.Now()

	if cached, err := p.cache.Get(query); err == nil {
		p.log.Info("using cached result", zap.String("query", shorten(query, 50)))
		return cached
	}

	if p.forecaster != nil && p.profile.Forecasting {
		if req, ok := forecast.Detect(query); ok {
			p.log.Info("detected forecast query", zap.Any("params", req))
			p.stats.Tool(ToolForecast)
			return p.forecast(ctx, req, start)
		}
	}

	cls, err := p.classifier.Classify(ctx, query)
	p.stats.Inc(ServerSelectionRequests)
	if err != nil {
		p.log.Error("error from classifier", zap.Error(err))
		return failure(err, start)
	}

	var resp *Response
	switch cls.QueryType {
	case classify.GeneralKnowledge:
		p.stats.Tool(ToolInsightGeneration)
		p.stats.Route(RouteClimateGPT)
		answer := cls.Answer
		if answer == "" {
			answer = noAnswer
		}
		resp = &Response{
			Type:     TypeGeneralKnowledge,
			Answer:   answer,
			Metadata: Metadata{ServerUsed: RouteClimateGPT},
		}
	case classify.Database:
		p.stats.Tool(ToolQueryProcessing)
		p.stats.Tool(ToolDatabaseAccess)
		p.stats.Route(p.profile.Server)
		if resp, err = p.database(ctx, query, cls.Plan); err != nil {
			return failure(err, start)
		}
	default:
		p.log.Warn("invalid classification", zap.String("type", cls.QueryType))
		return failure(ErrInvalidFormat, start)
	}

	resp.ExecutionTime = time.Since(start).Seconds()
	p.cache.Set(query, resp)
	return resp
}

func (p *Processor) database(ctx context.Context, query string, plan *classify.Plan) (*Response, error) {
	if plan == nil || len(plan.Steps) == 0 {
		p.log.Error("empty execution plan")
		return nil, ErrNoSteps
	}

	var final *sqlitedb.Result
	var finalSQL string
	for i, step := range plan.Steps {
		if strings.TrimSpace(step.SQL) == "" {
			p.log.Error("missing sql in step", zap.String("step", step.ID))
			continue
		}
		p.log.Info("executing step",
			zap.Int("step", i+1),
			zap.String("description", step.Description),
			zap.String("sql", shorten(step.SQL, 100)))

		res, err := p.db.Execute(ctx, step.SQL)
		if err != nil {
			p.log.Error("step failed", zap.String("step", step.ID), zap.Error(err))
			return nil, fmt.Errorf("Database query execution error in step %s: %w", step.ID, err)
		}
		final, finalSQL = res, step.SQL
	}
	if final == nil {
		return nil, ErrNoResults
	}

	insights := p.insights.Generate(ctx, query, finalSQL, final)

	p.stats.Tool(ToolVisualization)
	spec := viz.ForResult(final.Columns, final.Data, query, p.log)
	if spec != nil {
		insights = insight.WithChart(insights, viz.Describe(spec.Type), spec.Title)
		p.log.Info("added visualization", zap.String("type", spec.Type))
	}

	return &Response{
		Type:          TypeDatabase,
		Results:       final,
		Insights:      insights,
		Plan:          plan,
		Visualization: spec,
		Metadata:      Metadata{ServerUsed: p.profile.Server},
	}, nil
}

// forecast results are not cached; they are recomputed per request.
func (p *Processor) forecast(ctx context.Context, req forecast.Request, start time.Time) *Response {
	out, err := p.forecaster.Run(ctx, req)
	if err != nil {
		p.log.Error("forecast failed", zap.Error(err))
		return failure(err, start)
	}
	p.stats.Route(p.profile.Server)

	return &Response{
		Type:    TypeDatabase,
		Results: out.Result,
		Plan: &classify.Plan{Steps: []classify.Step{
			{ID: "forecast", Description: "Forecast query", SQL: out.SQL},
		}},
		Insights:         out.Insight,
		Visualization:    out.Visualization,
		ForecastMetadata: &out.Metadata,
		ExecutionTime:    time.Since(start).Seconds(),
		Metadata:         Metadata{ServerUsed: p.profile.Server},
	}
}

// Visualize charts caller-supplied rows.
func (p *Processor) Visualize(columns []string, data [][]any, query string) (*viz.Spec, error) {
	p.stats.Inc(VisualizationRequests)
	p.stats.Tool(ToolVisualization)
	return viz.Build(columns, data, query)
}

// msgNoSQL is shown for classifications that produced no usable plan.
const msgNoSQL = "Failed to generate SQL for this query"

func failure(err error, start time.Time) *Response {
	msg := err.Error()
	if errors.Is(err, classify.ErrIncomplete) {
		msg = msgNoSQL
	}
	return &Response{
		Type:          TypeError,
		Error:         msg,
		ExecutionTime: time.Since(start).Seconds(),
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
