package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
)

func TestLookup(t *testing.T) {
	p, err := Lookup("Emissions")
	require.NoError(t, err)
	assert.True(t, p.Forecasting)
	assert.Equal(t, "emissions_server", p.Server)

	p, err = Lookup("sealevel")
	require.NoError(t, err)
	assert.False(t, p.Forecasting)

	_, err = Lookup("glaciers")
	assert.Error(t, err)
}

func TestClassificationPrompt(t *testing.T) {
	p, _ := Lookup("wildfires")
	prompt := p.ClassificationPrompt("How many fires in 2016?")
	assert.Contains(t, prompt, `"How many fires in 2016?"`)
	assert.Contains(t, prompt, "Table: fire_data")
	assert.Contains(t, prompt, `"execution_plan"`)
}

func TestDefaultResponse(t *testing.T) {
	answer, ok := DefaultResponse("What is Global Warming?")
	assert.True(t, ok)
	assert.Contains(t, answer, "long-term heating")

	_, ok = DefaultResponse("sea level in 2001")
	assert.False(t, ok)
}

func TestSeaLevelFallback(t *testing.T) {
	t.Run("time series", func(t *testing.T) {
		res := &sqlitedb.Result{
			Columns: []string{"Date", "Region", "Unit", "Sea_Level_Change"},
			Data: [][]any{
				{"2000-01-01", "Baltic Sea", "Millimeters", 1.0},
				{"2001-01-01", "North Sea", "Millimeters", 2.5},
				{"2002-01-01", "Baltic Sea", "Millimeters", 4.0},
			},
		}
		out := seaLevelFallback(res)
		assert.Contains(t, out, "across different regions (Baltic Sea, North Sea)")
		assert.Contains(t, out, "rising trend from 2000-01-01 to 2002-01-01, with a change of 3.00 mm")
		assert.Contains(t, out, "contains 3 measurements")
	})

	t.Run("regional", func(t *testing.T) {
		res := &sqlitedb.Result{
			Columns: []string{"Region", "Sea_Level_Change"},
			Data:    [][]any{{"Baltic Sea", 1.0}, {"North Sea", 3.0}, {"Baltic Sea", 2.0}},
		}
		out := seaLevelFallback(res)
		assert.Contains(t, out, "for 2 different regions")
		assert.Contains(t, out, "The North Sea region shows the highest average sea level at 3.00")
		assert.Contains(t, out, "the Baltic Sea region shows the lowest at 1.50")
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No data available for analysis.", seaLevelFallback(&sqlitedb.Result{}))
	})
}

func TestSummaryFallback(t *testing.T) {
	fb := summaryFallback("climate data", "Closing.")

	out := fb(&sqlitedb.Result{Columns: []string{"region", "total"}, Data: [][]any{{"TX", 1.0}, {"CA", 2.0}}})
	assert.Contains(t, out, "compares two values across 2 dimensions")

	out = fb(&sqlitedb.Result{Columns: []string{"year", "total"}, Data: [][]any{{int64(2000), 1.0}, {int64(2005), 2.0}, {int64(2010), 3.0}}})
	assert.Contains(t, out, "time series from 2000 to 2010, covering 10 years")

	out = fb(&sqlitedb.Result{Columns: []string{"sector", "total"}, Data: [][]any{{"a", 1.0}}})
	assert.Equal(t, "The query returned 1 rows of climate data with 2 columns. Closing.", out)
}
