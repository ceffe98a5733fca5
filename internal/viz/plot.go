package viz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/i474232898/climategpt-servers/internal/common"
)

const palette = `colorblind_colors = ['#E69F00', '#56B4E9', '#009E73', '#F0E442', '#0072B2', '#D55E00', '#CC79A7', '#000000']
plt.rcParams['axes.prop_cycle'] = plt.cycler('color', colorblind_colors)`

const frame = `
import matplotlib.pyplot as plt
import numpy as np
import pandas as pd

# Create DataFrame from data
data = {{py .Data}}
columns = {{py .Columns}}
df = pd.DataFrame(data, columns=columns)

` + palette + `

plt.figure(figsize=(10, 6))
`

const credit = `
plt.figtext(0.99, 0.01, 'Colorblind-friendly palette',
           horizontalalignment='right', fontsize=8, style='italic')
`

const save = `
plt.tight_layout()
plt.savefig('climate_visualization.png', dpi=300, bbox_inches='tight')
plt.show()
`

var templates = template.Must(template.New("plots").Funcs(template.FuncMap{
	"py":    pyLiteral,
	"col":   func(s string) string { return pyLiteral(s) },
	"sub":   func(a, b int) int { return a - b },
	"mod8":  func(i int) int { return i % 8 },
	"float": func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
}).Parse(`
{{define "line"}}` + frame + `
{{range .Y}}plt.plot(df[{{col $.X.Label}}], df[{{col .Label}}], label={{col .Label}}, linewidth=2.5, marker="o", markersize=5)
{{end}}
plt.title({{py .Title}}, fontsize=14)
plt.xlabel({{py .X.Label}}, fontsize=12)
plt.ylabel('Value', fontsize=12)
plt.grid(True, linestyle='--', alpha=0.7)
plt.legend(fontsize=10)
` + credit + save + `{{end}}

{{define "bar"}}` + frame + `{{if eq (len .Y) 1}}
plt.bar(df[{{col .X.Label}}], df[{{col (index .Y 0).Label}}], color=colorblind_colors)

plt.title({{py .Title}}, fontsize=14)
plt.xlabel({{py .X.Label}}, fontsize=12)
plt.ylabel({{py (index .Y 0).Label}}, fontsize=12)
plt.xticks(rotation=45, ha='right')
{{else}}
x = np.arange(len(df[{{col .X.Label}}]))
width = 0.8 / {{len .Y}}

{{range $i, $y := .Y}}plt.bar(x + {{$i}}*width - ({{sub (len $.Y) 1}}*width/2), df[{{col $y.Label}}], width, label={{col $y.Label}}, color=colorblind_colors[{{mod8 $i}}])
{{end}}
plt.title({{py .Title}}, fontsize=14)
plt.xlabel({{py .X.Label}}, fontsize=12)
plt.ylabel('Value', fontsize=12)
plt.xticks(x, df[{{col .X.Label}}], rotation=45, ha='right')
plt.legend(fontsize=10)
{{end}}` + credit + save + `{{end}}

{{define "bar_horizontal"}}` + frame + `{{if eq (len .Y) 1}}
plt.barh(df[{{col .X.Label}}], df[{{col (index .Y 0).Label}}], color=colorblind_colors)

plt.title({{py .Title}}, fontsize=14)
plt.xlabel({{py (index .Y 0).Label}}, fontsize=12)
plt.ylabel({{py .X.Label}}, fontsize=12)
{{else}}
y = np.arange(len(df[{{col .X.Label}}]))
height = 0.8 / {{len .Y}}

{{range $i, $y := .Y}}plt.barh(y + {{$i}}*height - ({{sub (len $.Y) 1}}*height/2), df[{{col $y.Label}}], height, label={{col $y.Label}}, color=colorblind_colors[{{mod8 $i}}])
{{end}}
plt.title({{py .Title}}, fontsize=14)
plt.ylabel({{py .X.Label}}, fontsize=12)
plt.xlabel('Value', fontsize=12)
plt.yticks(y, df[{{col .X.Label}}])
plt.legend(fontsize=10)
{{end}}` + credit + save + `{{end}}

{{define "pie"}}` + frame + `
value_col = {{col .ValueColumn}}
label_col = {{col .LabelColumn}}

# Matplotlib cannot draw negative wedges; carbon sinks are listed instead.
pie_df = df[df[value_col] >= 0].copy()
negative_values = df[df[value_col] < 0]
if not negative_values.empty:
    print("Note: The following negative values were excluded from the pie chart:")
    for i, row in negative_values.iterrows():
        print(f"  - {row[label_col]}: {row[value_col]} (carbon sink/reduction)")

if not pie_df.empty:
    plt.pie(pie_df[value_col], labels=pie_df[label_col],
            colors=colorblind_colors, autopct='%1.1f%%', startangle=90,
            wedgeprops={'edgecolor': 'w', 'linewidth': 1.5})
    plt.axis('equal')
    plt.title({{py .Title}} + '\n(Positive emissions only)', fontsize=14)
else:
    plt.text(0.5, 0.5, "Cannot create pie chart: All values are negative",
             horizontalalignment='center', verticalalignment='center',
             transform=plt.gca().transAxes, fontsize=14)
    plt.axis('off')
` + credit + save + `{{end}}

{{define "forecast_line"}}
import matplotlib.pyplot as plt
import numpy as np

plt.figure(figsize=(12, 7))
plt.style.use('seaborn-v0_8-whitegrid')

plt.plot({{py .Forecast.HistYears}}, {{py .Forecast.HistValues}}, '#0072B2',
         linewidth=2.5, marker='o', markersize=5, label='Historical Data')

plt.plot({{py .Forecast.Years}}, {{py .Forecast.Values}}, '#E69F00',
         linewidth=2.5, linestyle='--', marker='s', markersize=5, label='Forecast')
{{if .Forecast.Lower}}
plt.fill_between({{py .Forecast.Years}}, {{py .Forecast.Lower}}, {{py .Forecast.Upper}},
                color='#E69F00', alpha=0.2, label='95% Confidence Interval')
{{end}}
plt.axvline(x={{.Forecast.Start}}, color='gray', linestyle='--', alpha=0.7)
plt.text({{.Forecast.Start}} + 0.5, {{float .Forecast.LabelY}}, 'Forecast Start', verticalalignment='bottom', color='gray')
{{if .Forecast.Model}}
plt.figtext(0.72, 0.15,
           "Forecast Details:\n" +
           {{py (printf "Model: %s\n" .Forecast.Model)}} +
           {{py (printf "Historical Points: %d\n" (len .Forecast.HistYears))}} +
           {{py .Forecast.Features}},
           bbox=dict(facecolor='white', alpha=0.8, boxstyle='round', pad=0.5))
{{end}}
plt.grid(True, linestyle='--', alpha=0.7)
plt.title({{py .Title}}, fontsize=16)
plt.xlabel('Year', fontsize=12)
plt.ylabel('Emissions (Million Metric Tons CO₂e)', fontsize=12)
plt.legend(fontsize=10)

all_years = {{py .Forecast.HistYears}} + {{py .Forecast.Years}}
plt.xticks(
    np.arange(min(all_years), max(all_years)+1, step=max(1, len(all_years)//10)),
    rotation=45
)
` + save + `{{end}}
`))

// forecastPlot carries the series a forecast chart is drawn from.
type forecastPlot struct {
	HistYears, Years   []any
	HistValues, Values []any
	Lower, Upper       []any
	Start              int
	LabelY             float64
	Model              string
	Features           string
}

type plotData struct {
	*Spec
	X           Axis
	Y           []Axis
	LabelColumn string
	ValueColumn string
	Forecast    *forecastPlot
}

// PlotCode renders matplotlib code reproducing spec.
func PlotCode(spec *Spec) (string, error) {
	d := plotData{Spec: spec, Y: spec.YAxes}
	if spec.XAxis != nil {
		d.X = *spec.XAxis
	}

	name := spec.Type
	switch spec.Type {
	case Line, Bar, BarHorizontal:
		if len(d.Y) == 0 {
			return "", fmt.Errorf("%s chart without y axis", spec.Type)
		}
	case Pie:
		label, value := 0, min(1, len(spec.Columns)-1)
		if spec.LabelIndex != nil {
			label = *spec.LabelIndex
		}
		if spec.ValueIndex != nil {
			value = *spec.ValueIndex
		}
		d.LabelColumn, d.ValueColumn = spec.Columns[label], spec.Columns[value]
	case ForecastLine:
		d.Forecast = splitForecast(spec)
	default:
		name = Bar
		if len(d.Y) == 0 {
			return "", fmt.Errorf("chart type %q without y axis", spec.Type)
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, d); err != nil {
		return "", fmt.Errorf("render %s plot: %w", name, err)
	}
	return buf.String(), nil
}

func columnOr(columns []string, name string, def int) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return def
}

func splitForecast(spec *Spec) *forecastPlot {
	yearIdx := columnOr(spec.Columns, "year", 0)
	valIdx := columnOr(spec.Columns, "emissions", 1)
	typeIdx := columnOr(spec.Columns, "type", 2)
	lowIdx := columnOr(spec.Columns, "lower_ci", -1)
	upIdx := columnOr(spec.Columns, "upper_ci", -1)

	at := func(row []any, i int) any {
		if i < 0 || i >= len(row) {
			return nil
		}
		return row[i]
	}

	fp := &forecastPlot{}
	lo, hi := math.Inf(1), math.Inf(-1)
	track := func(v any) {
		if f, ok := common.ToFloat(v); ok {
			lo, hi = math.Min(lo, f), math.Max(hi, f)
		}
	}
	for _, row := range spec.Data {
		switch at(row, typeIdx) {
		case "Historical":
			fp.HistYears = append(fp.HistYears, at(row, yearIdx))
			fp.HistValues = append(fp.HistValues, at(row, valIdx))
			track(at(row, valIdx))
		case "Forecast":
			fp.Years = append(fp.Years, at(row, yearIdx))
			fp.Values = append(fp.Values, at(row, valIdx))
			if lowIdx >= 0 && upIdx >= 0 {
				fp.Lower = append(fp.Lower, at(row, lowIdx))
				fp.Upper = append(fp.Upper, at(row, upIdx))
				track(at(row, lowIdx))
				track(at(row, upIdx))
			}
		}
	}

	if len(fp.Years) > 0 {
		if y, ok := common.ToFloat(fp.Years[0]); ok {
			fp.Start = int(y)
		}
	}
	if !math.IsInf(lo, 0) {
		fp.LabelY = lo + (hi-lo)*0.05
	}
	if spec.Note != nil {
		fp.Model = spec.Note.Model
		if len(spec.Note.Features) > 0 {
			fp.Features = "Key predictors: " + strings.Join(spec.Note.Features, ", ")
		}
	}
	return fp
}

// pyLiteral renders v as a Python literal.
func pyLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		b, _ := json.Marshal(x)
		return string(b)
	case float64:
		switch {
		case math.IsNaN(x):
			return "float('nan')"
		case math.IsInf(x, 1):
			return "float('inf')"
		case math.IsInf(x, -1):
			return "-float('inf')"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case [][]any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if f, ok := common.ToFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return pyLiteral(fmt.Sprint(v))
}
