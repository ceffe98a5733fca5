package dataset

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/i474232898/climategpt-servers/internal/common"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
)

func columnIndex(cols []string, name string) int {
	return slices.Index(cols, name)
}

// summaryFallback handles comparisons, numeric time series and a generic row
// count. subject names the data in the generic sentence.
func summaryFallback(subject, closing string) func(res *sqlitedb.Result) string {
	return func(res *sqlitedb.Result) string {
		if res.Empty() || len(res.Columns) == 0 {
			return "No data available for analysis."
		}
		rows := len(res.Data)

		if rows == 2 && len(res.Columns) >= 2 {
			return fmt.Sprintf("This data compares two values across %d dimensions. "+
				"The results show the requested information from the climate database.", len(res.Columns))
		}

		timeCol := -1
		for i, c := range res.Columns {
			if l := strings.ToLower(c); l == "year" || l == "date" || l == "time" {
				timeCol = i
				break
			}
		}
		if timeCol >= 0 && rows > 1 {
			start, ok1 := common.ToFloat(res.Data[0][timeCol])
			end, ok2 := common.ToFloat(res.Data[rows-1][timeCol])
			if ok1 && ok2 {
				return fmt.Sprintf("This data shows a time series from %v to %v, covering %v years. "+
					"These historical records can help understand climate trends over time.",
					res.Data[0][timeCol], res.Data[rows-1][timeCol], end-start)
			}
		}

		return fmt.Sprintf("The query returned %d rows of %s with %d columns. %s",
			rows, subject, len(res.Columns), closing)
	}
}

func seaLevelFallback(res *sqlitedb.Result) string {
	if res.Empty() || len(res.Columns) == 0 {
		return "No data available for analysis."
	}
	cols, data := res.Columns, res.Data
	rows := len(data)
	dateIdx := columnIndex(cols, "Date")
	regionIdx := columnIndex(cols, "Region")
	levelIdx := columnIndex(cols, "Sea_Level_Change")

	if dateIdx >= 0 && levelIdx >= 0 && rows > 1 {
		startVal, ok1 := common.ToFloat(data[0][levelIdx])
		endVal, ok2 := common.ToFloat(data[rows-1][levelIdx])
		if ok1 && ok2 {
			change := endVal - startVal
			var trend, impact string
			switch {
			case change > 0:
				trend = "rising"
				impact = "This rising trend in sea levels is consistent with global warming patterns and may impact coastal communities through increased flooding and erosion."
			case change < 0:
				trend = "falling"
				impact = "This falling trend is unusual compared to global patterns and may reflect local geological factors or measurement anomalies."
			default:
				trend = "stable"
				impact = "This stability in sea levels is unusual compared to global trends and warrants further investigation."
			}

			unit := "mm"
			if i := columnIndex(cols, "Unit"); i >= 0 {
				if u, ok := data[0][i].(string); ok && !strings.EqualFold(u, "millimeters") {
					unit = u
				}
			}

			regionInfo := ""
			if regionIdx >= 0 {
				regions := distinctStrings(data, regionIdx)
				if len(regions) > 1 {
					regionInfo = fmt.Sprintf(" across different regions (%s)", strings.Join(regions, ", "))
				}
			}

			return fmt.Sprintf("The sea level data%s shows a %s trend from %v to %v, with a change of %.2f %s. %s "+
				"This dataset contains %d measurements, providing a meaningful time series for analysis.",
				regionInfo, trend, data[0][dateIdx], data[rows-1][dateIdx], change, unit, impact, rows)
		}
	}

	if regionIdx >= 0 && levelIdx >= 0 {
		sums := map[string]float64{}
		counts := map[string]int{}
		for _, row := range data {
			v, ok := common.ToFloat(row[levelIdx])
			if !ok {
				continue
			}
			r := fmt.Sprint(row[regionIdx])
			sums[r] += v
			counts[r]++
		}
		if len(counts) > 0 {
			names := make([]string, 0, len(counts))
			for r := range counts {
				names = append(names, r)
			}
			sort.Strings(names)
			maxR, minR := names[0], names[0]
			avg := func(r string) float64 { return sums[r] / float64(counts[r]) }
			for _, r := range names[1:] {
				if avg(r) > avg(maxR) {
					maxR = r
				}
				if avg(r) < avg(minR) {
					minR = r
				}
			}
			return fmt.Sprintf("The data contains sea level measurements for %d different regions. "+
				"The %s region shows the highest average sea level at %.2f units, while the %s region shows the lowest at %.2f units. "+
				"This regional variation highlights the complexity of sea level changes, which can be influenced by local factors such as ocean currents, wind patterns, and geological activity.",
				len(names), maxR, avg(maxR), minR, avg(minR))
		}
	}

	return fmt.Sprintf("The query returned %d rows of sea level data with %d columns. "+
		"Sea levels globally have been rising at an accelerating rate in recent decades, with significant implications for coastal regions and ecosystems.",
		rows, len(cols))
}

func distinctStrings(data [][]any, idx int) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range data {
		s := fmt.Sprint(row[idx])
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
