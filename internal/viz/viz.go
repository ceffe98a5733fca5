// Package viz decides whether a tabular result is worth charting, picks a
// chart type from the result shape and question wording, and renders
// matplotlib code for the client.
package viz

import (
	"errors"
	"slices"
	"strings"

	"github.com/i474232898/climategpt-servers/internal/common"
)

// Chart types.
const (
	Line          = "line"
	Bar           = "bar"
	BarHorizontal = "bar_horizontal"
	Pie           = "pie"
	ForecastLine  = "forecast_line"
)

// ErrNotVisualizable is returned for results too small to chart.
var ErrNotVisualizable = errors.New("data is not suitable for visualization")

var (
	trendWords        = []string{"trend", "over time", "change", "evolution", "history", "series", "since"}
	comparisonWords   = []string{"compare", "comparison", "versus", "vs", "between", "difference"}
	distributionWords = []string{"distribution", "breakdown", "proportion", "percentage", "share", "split"}
	rankingWords      = []string{"ranking", "rank", "top", "highest", "lowest"}

	regionColumns = []string{"region_name", "geo_ref", "state"}
	ghgColumns    = []string{"ghg_name", "ghg_category"}
	sectorColumns = []string{"sector", "subsector", "category"}
	fuelColumns   = []string{"fuel1", "fuel2"}

	xPriority = []string{
		"year",
		"region_name", "geo_ref", "state",
		"sector", "category", "subsector",
		"ghg_name", "ghg_category",
		"fuel1",
	}
	pieLabels = []string{"ghg_name", "sector", "region_name", "fuel1", "state"}
)

// IsVisualizable reports whether a result has enough shape to chart: two
// columns and two rows, or a single row spread over three or more columns.
func IsVisualizable(columns []string, data [][]any) bool {
	if len(data) == 0 || len(columns) < 2 {
		return false
	}
	if len(data) < 2 {
		return len(columns) >= 3
	}
	return true
}

func lower(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = strings.ToLower(c)
	}
	return out
}

func hasColumn(cols []string, names []string) bool {
	for _, c := range cols {
		if slices.Contains(names, c) {
			return true
		}
	}
	return false
}

// numericColumns returns columns holding a number in any of the first five rows.
func numericColumns(columns []string, data [][]any) []int {
	head := data[:min(5, len(data))]
	var out []int
	for i := range columns {
		for _, row := range head {
			if i < len(row) && common.IsNumeric(row[i]) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func hasNegative(data [][]any, numeric []int) bool {
	for _, i := range numeric {
		for _, row := range data {
			if i >= len(row) {
				continue
			}
			if v, ok := common.ToFloat(row[i]); ok && v < 0 {
				return true
			}
		}
	}
	return false
}

// IsForecast reports whether a "type" column marks any row as a forecast.
func IsForecast(columns []string, data [][]any) bool {
	idx := slices.Index(columns, "type")
	if idx < 0 {
		return false
	}
	for _, row := range data {
		if idx < len(row) && row[idx] == "Forecast" {
			return true
		}
	}
	return false
}

// ChooseType picks a chart type from the columns present, the row count and
// the intent words in query. Pies are never chosen for data with negative
// values.
func ChooseType(columns []string, data [][]any, query string, forecast bool) string {
	if forecast {
		return ForecastLine
	}
	if len(columns) == 0 || len(data) == 0 {
		return Bar
	}

	cols := lower(columns)
	rows := len(data)
	hasYear := slices.ContainsFunc(cols, func(c string) bool { return strings.Contains(c, "year") })
	numeric := numericColumns(columns, data)
	negative := hasNegative(data, numeric)

	q := strings.ToLower(query)
	trend := common.HasAny(q, trendWords...)
	comparison := common.HasAny(q, comparisonWords...)
	distribution := common.HasAny(q, distributionWords...)
	ranking := common.HasAny(q, rankingWords...)

	if len(numeric) > 0 {
		switch {
		case hasYear:
			switch {
			case trend:
				return Line
			case comparison && rows <= 10:
				return Bar
			case rows > 7:
				return Line
			default:
				return Bar
			}
		case hasColumn(cols, regionColumns):
			if rows > 8 {
				return BarHorizontal
			}
			return Bar
		case hasColumn(cols, sectorColumns):
			switch {
			case distribution && rows <= 7 && !negative:
				return Pie
			case distribution && negative:
				return Bar
			case (ranking || comparison) && rows > 7:
				return BarHorizontal
			default:
				return Bar
			}
		case hasColumn(cols, ghgColumns), hasColumn(cols, fuelColumns):
			if distribution && rows <= 7 && !negative {
				return Pie
			}
			return Bar
		}
	}

	if rows == 1 && len(numeric) >= 2 && distribution && !negative {
		return Pie
	}
	if rows > 10 && len(numeric) >= 1 {
		return BarHorizontal
	}
	return Bar
}

// Axes returns the x column and the y columns for a chart type. The x axis
// prefers schema columns such as year or region for line and bar charts; y
// puts an "emissions" column first, then the other numeric columns.
func Axes(columns []string, data [][]any, chartType string) (int, []int) {
	cols := lower(columns)
	numeric := numericColumns(columns, data)

	x := -1
	if chartType == Line || chartType == Bar || chartType == BarHorizontal {
		for _, p := range xPriority {
			if i := slices.Index(cols, p); i >= 0 {
				x = i
				break
			}
		}
	}
	if x < 0 {
		for i := range columns {
			if !slices.Contains(numeric, i) {
				x = i
				break
			}
		}
	}
	if x < 0 {
		x = 0
	}

	var ys []int
	if e := slices.Index(cols, "emissions"); e >= 0 && e != x {
		ys = append(ys, e)
	}
	for _, i := range numeric {
		if i != x && !slices.Contains(ys, i) {
			ys = append(ys, i)
		}
	}
	if len(ys) == 0 {
		for i := range columns {
			if i != x {
				ys = append(ys, i)
			}
		}
	}
	return x, ys
}

// PieIndices returns the label and value columns for a pie chart.
func PieIndices(columns []string, data [][]any) (label, value int) {
	cols := lower(columns)

	label = -1
	for _, c := range pieLabels {
		if i := slices.Index(cols, c); i >= 0 {
			label = i
			break
		}
	}
	if label < 0 {
		label = 0
		for i := range columns {
			if !allNumeric(data, i, len(data)) {
				label = i
				break
			}
		}
	}

	if i := slices.Index(cols, "emissions"); i >= 0 {
		return label, i
	}
	for i := range columns {
		if allNumeric(data, i, 5) {
			return label, i
		}
	}
	return label, min(1, len(columns)-1)
}

func allNumeric(data [][]any, col, limit int) bool {
	for _, row := range data[:min(limit, len(data))] {
		if col < len(row) && !common.IsNumeric(row[col]) {
			return false
		}
	}
	return true
}

// Describe names a chart type in prose, e.g. "bar chart".
func Describe(chartType string) string {
	switch chartType {
	case Line:
		return "line chart"
	case Bar:
		return "bar chart"
	case BarHorizontal:
		return "horizontal bar chart"
	case Pie:
		return "pie chart"
	}
	return "visualization"
}
