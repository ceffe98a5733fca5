package forecast

import (
	"fmt"
	"math"
	"strings"
)

const chartGuide = `### Chart Guide
Historical data appears as a solid blue line with circles, forecast as a dashed orange line with squares. The shaded area shows the 95% confidence interval - the range where actual emissions are likely to fall.
`

func orderText(m ModelInfo) string {
	if m.Order == nil {
		return ""
	}
	return m.Order.String()
}

// Explain renders a markdown summary of a forecast: headline change, trend
// comparison, model choice and interval width at the horizon.
func Explain(r *Result) string {
	if r == nil {
		return "Could not generate forecast explanation due to missing data."
	}
	fc := r.Forecast
	if len(fc.Years) == 0 || len(fc.Values) == 0 {
		return "Could not generate forecast explanation due to incomplete forecast data."
	}
	first, last := fc.Years[0], fc.Years[len(fc.Years)-1]
	model, order := r.Model.Type, orderText(r.Model)

	var b strings.Builder
	fmt.Fprintf(&b, "## Emissions Forecast (%d-%d)\n\n", first, last)

	hist := r.Historical
	if len(hist.Values) == 0 {
		fmt.Fprintf(&b, "### Forecast Summary\nThe %s %s model predicts emissions values from %d to %d.\n\n", model, order, first, last)
		fmt.Fprintf(&b, "### Model Assessment\nThe optimal %s%s model was selected after comparing multiple parameter combinations.\n\n", model, order)
		b.WriteString(chartGuide)
		return b.String()
	}

	lastHist := hist.Values[len(hist.Values)-1]
	lastForecast := fc.Values[len(fc.Values)-1]
	pct := 0.0
	if lastHist != 0 {
		pct = (lastForecast - lastHist) / lastHist * 100
	}
	direction := "decrease"
	if pct > 0 {
		direction = "increase"
	}

	histTrend := slopeOf(hist.Values)
	fcTrend := slopeOf(fc.Values)
	continues := "reverses"
	if (histTrend > 0 && fcTrend > 0) || (histTrend < 0 && fcTrend < 0) {
		continues = "continues"
	}
	histDirection := "downward"
	if histTrend > 0 {
		histDirection = "upward"
	}

	featureInfo := ""
	if len(r.Model.SelectedFeatures) > 0 {
		featureInfo = fmt.Sprintf("The forecast model incorporated additional features including %s to improve prediction accuracy. ",
			strings.Join(r.Model.SelectedFeatures, ", "))
	}
	mae := "N/A"
	if r.Metrics != nil {
		mae = fmt.Sprintf("%.2f", r.Metrics.MAE)
	}

	fmt.Fprintf(&b, "### Forecast Summary\nBased on %d-%d data, the %s %s model predicts a **%.1f%%** %s in emissions by %d, from %.2f to %.2f units.\n\n",
		hist.Years[0], hist.Years[len(hist.Years)-1], model, order, math.Abs(pct), direction, last, lastHist, lastForecast)
	fmt.Fprintf(&b, "### Trend Analysis\nHistorical data shows a %s trend of %.3f units/year. The forecast %s this pattern with a projected change of %.3f units/year.\n\n",
		histDirection, math.Abs(histTrend), continues, math.Abs(fcTrend))
	fmt.Fprintf(&b, "### Model Assessment\nThe optimal %s%s model was selected after comparing multiple parameter combinations. %s\n\n", model, order, featureInfo)
	fmt.Fprintf(&b, "### Reliability\n- **Accuracy**: MAE of %s (average prediction error)\n", mae)
	fmt.Fprintf(&b, "- **Confidence Interval**: By %d, emissions expected between %.2f and %.2f\n",
		last, fc.LowerCI[len(fc.LowerCI)-1], fc.UpperCI[len(fc.UpperCI)-1])
	b.WriteString("- **Uncertainty**: Confidence interval widens over time, reflecting increasing uncertainty for later years\n\n")
	b.WriteString(chartGuide)
	return b.String()
}

// slopeOf is the average change per step between the first and last value.
func slopeOf(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return (v[len(v)-1] - v[0]) / float64(len(v)-1)
}
