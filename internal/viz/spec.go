package viz

import (
	"go.uber.org/zap"
)

// Axis names a column by index.
type Axis struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Note annotates a forecast chart with the model that produced it.
type Note struct {
	Model    string
	Features []string
}

// Spec is a render-ready chart description.
type Spec struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	XAxis      *Axis    `json:"x_axis,omitempty"`
	YAxes      []Axis   `json:"y_axes,omitempty"`
	Data       [][]any  `json:"data"`
	Columns    []string `json:"columns"`
	LabelIndex *int     `json:"label_index,omitempty"`
	ValueIndex *int     `json:"value_index,omitempty"`
	PlotCode   string   `json:"plot_code,omitempty"`

	Note *Note `json:"-"`
}

// Build describes how to chart a result. It fails with ErrNotVisualizable
// for results that are too small.
func Build(columns []string, data [][]any, query string) (*Spec, error) {
	if !IsVisualizable(columns, data) {
		return nil, ErrNotVisualizable
	}

	chartType := ChooseType(columns, data, query, IsForecast(columns, data))
	spec := &Spec{
		Type:    chartType,
		Title:   Title(query, chartType),
		Data:    data,
		Columns: columns,
	}
	if chartType != ForecastLine {
		x, ys := Axes(columns, data, chartType)
		spec.XAxis = &Axis{Index: x, Label: columns[x]}
		for _, y := range ys {
			spec.YAxes = append(spec.YAxes, Axis{Index: y, Label: columns[y]})
		}
	}
	if chartType == Pie {
		label, value := PieIndices(columns, data)
		spec.LabelIndex, spec.ValueIndex = &label, &value
	}

	code, err := PlotCode(spec)
	if err != nil {
		return nil, err
	}
	spec.PlotCode = code
	return spec, nil
}

// Forecast describes a historical-plus-forecast line chart. Rows are
// [year, emissions, "Historical"|"Forecast", lower_ci, upper_ci].
func Forecast(title string, columns []string, data [][]any, note *Note) (*Spec, error) {
	spec := &Spec{
		Type:    ForecastLine,
		Title:   title,
		Data:    data,
		Columns: columns,
		Note:    note,
	}
	code, err := PlotCode(spec)
	if err != nil {
		return nil, err
	}
	spec.PlotCode = code
	return spec, nil
}

// ForResult returns a chart for a query result, or nil when the result is not
// worth charting or the chart cannot be rendered.
func ForResult(columns []string, data [][]any, query string, log *zap.Logger) *Spec {
	if !IsVisualizable(columns, data) {
		return nil
	}
	spec, err := Build(columns, data, query)
	if err != nil {
		log.Error("error generating visualization", zap.Error(err))
		return nil
	}
	return spec
}
