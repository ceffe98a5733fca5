package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/i474232898/climategpt-servers/internal/router"
)

var (
	accent = lipgloss.Color("#4db6ac")
	muted  = lipgloss.Color("#8a8f98")
	danger = lipgloss.Color("#e53935")
	okay   = lipgloss.Color("#8BC34A")
	warn   = lipgloss.Color("#FFC107")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(muted)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderReply writes a query answer. At most rowLimit rows of a table are
// shown.
func renderReply(w io.Writer, reply *router.Reply, rowLimit int) {
	if reply.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+reply.Error))
		if reply.Message != "" {
			fmt.Fprintln(w, mutedStyle.Render(reply.Message))
		}
		return
	}

	source := "ClimateGPT"
	if reply.Server != "" {
		source = reply.Server
	}
	header := "Answered by " + source
	if reply.ExecutionTime > 0 {
		header += " in " + formatSeconds(reply.ExecutionTime)
	}
	fmt.Fprintln(w, titleStyle.Render(header))

	if reply.Type == "general_knowledge" {
		if reply.Result != nil {
			fmt.Fprintln(w, answerStyle.Render(reply.Result.Answer))
		}
		return
	}

	if reply.SQL != "" {
		fmt.Fprintln(w, mutedStyle.Render(reply.SQL))
	}
	if reply.Result != nil && len(reply.Result.Columns) > 0 {
		fmt.Fprintln(w, resultTable(reply.Result, rowLimit))
		if extra := len(reply.Result.Data) - rowLimit; rowLimit > 0 && extra > 0 {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("... %s more rows", humanize.Comma(int64(extra)))))
		}
	}
	if meta := forecastSummary(reply.ForecastMetadata); meta != "" {
		fmt.Fprintln(w, mutedStyle.Render(meta))
	}
	if reply.Insight != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Insights"))
		fmt.Fprintln(w, reply.Insight)
	}
	if v := reply.Visualization; v != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Visualization: %s (%s)", v.Title, v.Type)))
	}
}

func resultTable(res *router.Result, rowLimit int) string {
	t := newTable(res.Columns...)
	for i, row := range res.Data {
		if rowLimit > 0 && i >= rowLimit {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			col := ""
			if j < len(res.Columns) {
				col = res.Columns[j]
			}
			cells[j] = formatCell(col, v)
		}
		t.Row(cells...)
	}
	return t.String()
}

// formatCell renders a JSON value for a table. Year columns keep their digits
// ungrouped.
func formatCell(column string, v any) string {
	switch n := v.(type) {
	case nil:
		return "-"
	case float64:
		if strings.Contains(strings.ToLower(column), "year") && n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		if n == float64(int64(n)) {
			return humanize.Comma(int64(n))
		}
		return humanize.CommafWithDigits(n, 2)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

func forecastSummary(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	meta := gjson.ParseBytes(raw)
	if !meta.Get("is_forecast").Bool() {
		return ""
	}
	s := fmt.Sprintf("Forecast: %d years with %s", meta.Get("forecast_years").Int(), meta.Get("model_info.type").String())
	if rmse := meta.Get("metrics.RMSE"); rmse.Exists() {
		s += fmt.Sprintf(", RMSE %s", humanize.CommafWithDigits(rmse.Float(), 2))
	}
	return s
}

func formatSeconds(s float64) string {
	return humanize.FtoaWithDigits(s, 2) + "s"
}

func renderServers(w io.Writer, servers []router.Server) {
	t := newTable("NAME", "URL", "DESCRIPTION", "CAPABILITIES")
	for _, s := range servers {
		t.Row(s.Name, s.URL, s.Description, strings.Join(s.Capabilities, ", "))
	}
	fmt.Fprintln(w, t)
}

func renderHealth(w io.Writer, health []router.Health) {
	t := newTable("SERVER", "STATUS", "LATENCY", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(health) {
				return cellStyle.Foreground(statusColor(health[row].Status))
			}
			return cellStyle
		})
	for _, h := range health {
		t.Row(h.Name, h.Status, h.Latency.Round(time.Millisecond).String(), h.Error)
	}
	fmt.Fprintln(w, t)

	online := 0
	for _, h := range health {
		if h.Status == router.Online {
			online++
		}
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d of %s servers online", online, humanize.Comma(int64(len(health))))))
}

func statusColor(status string) lipgloss.Color {
	switch status {
	case router.Online:
		return okay
	case router.Failing:
		return warn
	default:
		return danger
	}
}

func renderStats(w io.Writer, name string, st *router.ToolStats) {
	fmt.Fprintln(w, titleStyle.Render(name))
	t := newTable("KIND", "NAME", "COUNT")
	for _, k := range slices.Sorted(maps.Keys(st.ToolUsage)) {
		t.Row("tool", k, humanize.Comma(int64(st.ToolUsage[k])))
	}
	for _, k := range slices.Sorted(maps.Keys(st.RoutingDecisions)) {
		t.Row("route", k, humanize.Comma(int64(st.RoutingDecisions[k])))
	}
	t.Row("selection", "requests", humanize.Comma(int64(st.ServerSelectionRequests)))
	fmt.Fprintln(w, t)
}
