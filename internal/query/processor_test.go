package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/classify"
	"github.com/i474232898/climategpt-servers/internal/dataset"
	"github.com/i474232898/climategpt-servers/internal/forecast"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb/sqlitedbtest"
	"github.com/i474232898/climategpt-servers/internal/store"
	"github.com/i474232898/climategpt-servers/internal/viz"
)

type stubClassifier struct {
	cls   *classify.Classification
	err   error
	calls int
}

func (s *stubClassifier) Classify(context.Context, string) (*classify.Classification, error) {
	s.calls++
	return s.cls, s.err
}

type stubInsights struct{ sql string }

func (s *stubInsights) Generate(_ context.Context, _, sql string, _ *sqlitedb.Result) string {
	s.sql = sql
	return "Emissions changed."
}

type fixture struct {
	proc       *Processor
	classifier *stubClassifier
	insights   *stubInsights
}

func newFixture(t *testing.T, cls *classify.Classification, clsErr error) fixture {
	t.Helper()
	profile, err := dataset.Lookup("emissions")
	require.NoError(t, err)

	db, err := sqlitedb.Open(sqlitedbtest.Emissions(t), sqlitedb.Options{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := fixture{
		classifier: &stubClassifier{cls: cls, err: clsErr},
		insights:   &stubInsights{},
	}
	f.proc = NewProcessor(Deps{
		Profile:    profile,
		Classifier: f.classifier,
		DB:         db,
		Insights:   f.insights,
		Forecaster: forecast.NewExecutor(db, forecast.Options{}, zap.NewNop()),
		Cache:      store.NewMemoryStore[*Response](10, time.Hour),
		Log:        zap.NewNop(),
	})
	return f
}

func plan(sqls ...string) *classify.Plan {
	p := &classify.Plan{}
	for i, s := range sqls {
		p.Steps = append(p.Steps, classify.Step{ID: "step" + string(rune('1'+i)), SQL: s})
	}
	return p
}

func TestProcessDatabaseQuery(t *testing.T) {
	f := newFixture(t, &classify.Classification{
		QueryType: classify.Database,
		Plan: plan(
			"SELECT COUNT(*) FROM Emissions",
			"SELECT year, SUM(emissions) AS total_emissions FROM Emissions GROUP BY year ORDER BY year",
		),
	}, nil)

	resp := f.proc.Process(context.Background(), "total emissions by year")
	require.Equal(t, TypeDatabase, resp.Type, resp.Error)
	assert.Equal(t, []string{"year", "total_emissions"}, resp.Results.Columns)
	assert.Len(t, resp.Results.Data, 23)
	assert.Equal(t, resp.FinalSQL(), f.insights.sql)
	assert.Equal(t, "emissions_server", resp.Metadata.ServerUsed)

	require.NotNil(t, resp.Visualization)
	assert.Equal(t, viz.Line, resp.Visualization.Type)
	assert.Contains(t, resp.Insights, "Emissions changed.\n\nThe line chart titled ")

	again := f.proc.Process(context.Background(), "total emissions by year")
	assert.Same(t, resp, again)
	assert.Equal(t, 1, f.classifier.calls)

	snap := f.proc.Stats().Snapshot()
	assert.Equal(t, 1, snap.ServerSelectionRequests)
	assert.Equal(t, 1, snap.ToolUsage[ToolDatabaseAccess])
	assert.Equal(t, 1, snap.ToolUsage[ToolVisualization])
	assert.Equal(t, 1, snap.RoutingDecisions["emissions_server"])
}

func TestProcessGeneralKnowledge(t *testing.T) {
	f := newFixture(t, &classify.Classification{QueryType: classify.GeneralKnowledge}, nil)

	resp := f.proc.Process(context.Background(), "what is a greenhouse gas")
	assert.Equal(t, TypeGeneralKnowledge, resp.Type)
	assert.Equal(t, noAnswer, resp.Answer)
	assert.Equal(t, RouteClimateGPT, resp.Metadata.ServerUsed)
	assert.Equal(t, 1, f.proc.Stats().Snapshot().RoutingDecisions[RouteClimateGPT])
}

func TestProcessForecastSkipsClassifier(t *testing.T) {
	f := newFixture(t, nil, errors.New("classifier should not run"))

	resp := f.proc.Process(context.Background(), "Forecast CO2 emissions for Texas until 2027")
	require.Equal(t, TypeDatabase, resp.Type, resp.Error)
	assert.Zero(t, f.classifier.calls)
	require.NotNil(t, resp.ForecastMetadata)
	assert.Equal(t, 5, resp.ForecastMetadata.ForecastYears)
	assert.Equal(t, "forecast", resp.Plan.Steps[0].ID)
	assert.Len(t, resp.Results.Data, 28)

	f.proc.Process(context.Background(), "Forecast CO2 emissions for Texas until 2027")
	assert.Equal(t, 2, f.proc.Stats().Snapshot().ToolUsage[ToolForecast])
}

func TestProcessErrors(t *testing.T) {
	t.Run("classifier", func(t *testing.T) {
		f := newFixture(t, nil, classify.ErrIncomplete)
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Equal(t, TypeError, resp.Type)
		assert.Equal(t, "Failed to generate SQL for this query", resp.Error)
	})
	t.Run("classifier wrapped", func(t *testing.T) {
		f := newFixture(t, nil, fmt.Errorf("missing plan: %w", classify.ErrIncomplete))
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Equal(t, "Failed to generate SQL for this query", resp.Error)
	})
	t.Run("empty plan", func(t *testing.T) {
		f := newFixture(t, &classify.Classification{QueryType: classify.Database, Plan: &classify.Plan{}}, nil)
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Equal(t, ErrNoSteps.Error(), resp.Error)
	})
	t.Run("blank steps", func(t *testing.T) {
		f := newFixture(t, &classify.Classification{QueryType: classify.Database, Plan: plan("  ")}, nil)
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Equal(t, ErrNoResults.Error(), resp.Error)
	})
	t.Run("bad sql", func(t *testing.T) {
		f := newFixture(t, &classify.Classification{QueryType: classify.Database, Plan: plan("SELECT nope FROM Missing")}, nil)
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Contains(t, resp.Error, "Database query execution error in step step1")

		_, err := f.proc.cache.Get("emissions in texas")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
	t.Run("unknown type", func(t *testing.T) {
		f := newFixture(t, &classify.Classification{QueryType: "other"}, nil)
		resp := f.proc.Process(context.Background(), "emissions in texas")
		assert.Equal(t, ErrInvalidFormat.Error(), resp.Error)
	})
}

func TestVisualize(t *testing.T) {
	f := newFixture(t, nil, nil)

	spec, err := f.proc.Visualize([]string{"sector", "emissions"}, [][]any{{"Energy", 1.0}, {"Waste", 2.0}}, "share by sector")
	require.NoError(t, err)
	assert.Equal(t, viz.Pie, spec.Type)

	_, err = f.proc.Visualize([]string{"x"}, nil, "")
	assert.ErrorIs(t, err, viz.ErrNotVisualizable)
	assert.Equal(t, 2, f.proc.Stats().Snapshot().VisualizationRequests)
}

func TestStatsRouteFallback(t *testing.T) {
	s := NewStats("sea_level_server")
	s.Route("somewhere_else")
	s.Route("sea_level_server")
	s.Inc("not_a_counter")
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.RoutingDecisions[RouteFallback])
	assert.Equal(t, 1, snap.RoutingDecisions["sea_level_server"])
	assert.NotContains(t, snap.RoutingDecisions, "somewhere_else")
}
