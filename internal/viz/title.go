package viz

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/i474232898/climategpt-servers/internal/common"
)

var reTitleYear = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// Subject tables are consulted in order until one of them matches.
var subjectTables = [][]common.Term{
	{
		{Match: []string{"energy"}, Value: "Energy"},
		{Match: []string{"industrial processes"}, Value: "Industrial Processes"},
		{Match: []string{"agriculture"}, Value: "Agriculture"},
		{Match: []string{"waste"}, Value: "Waste"},
		{Match: []string{"land-use change"}, Value: "Land-Use Change"},
		{Match: []string{"forestry"}, Value: "Forestry"},
		{Match: []string{"lulucf", "land use change and forestry"}, Value: "LULUCF"},
	},
	{
		{Match: []string{"transportation"}, Value: "Transportation"},
		{Match: []string{"electric power"}, Value: "Electric Power"},
		{Match: []string{"industry"}, Value: "Industry"},
		{Match: []string{"agriculture"}, Value: "Agriculture"},
		{Match: []string{"commercial"}, Value: "Commercial"},
		{Match: []string{"residential"}, Value: "Residential"},
		{Match: []string{"u.s. territories"}, Value: "U.S. Territories"},
	},
	{
		{Match: []string{"fossil fuel combustion"}, Value: "Fossil Fuel Combustion"},
		{Match: []string{"fugitive"}, Value: "Fugitive Emissions"},
		{Match: []string{"incineration of waste"}, Value: "Waste Incineration"},
		{Match: []string{"chemical industry"}, Value: "Chemical Industry"},
		{Match: []string{"metal industry"}, Value: "Metal Industry"},
		{Match: []string{"mineral industry"}, Value: "Mineral Industry"},
		{Match: []string{"electronics industry"}, Value: "Electronics Industry"},
		{Match: []string{"substitution of ozone depleting substances"}, Value: "ODS Substitution"},
		{Match: []string{"agricultural soil management"}, Value: "Agricultural Soil Management"},
		{Match: []string{"enteric fermentation"}, Value: "Enteric Fermentation"},
		{Match: []string{"manure management"}, Value: "Manure Management"},
		{Match: []string{"rice cultivation"}, Value: "Rice Cultivation"},
		{Match: []string{"field burning"}, Value: "Field Burning"},
		{Match: []string{"solid waste disposal"}, Value: "Solid Waste Disposal"},
		{Match: []string{"landfills"}, Value: "Landfills"},
		{Match: []string{"wastewater treatment"}, Value: "Wastewater Treatment"},
		{Match: []string{"composting"}, Value: "Composting"},
	},
	{
		{Match: []string{"coal"}, Value: "Coal"},
		{Match: []string{"natural gas"}, Value: "Natural Gas"},
		{Match: []string{"petroleum"}, Value: "Petroleum"},
		{Match: []string{"biomass"}, Value: "Biomass"},
		{Match: []string{"fossil fuel"}, Value: "Fossil Fuel"},
	},
}

var intents = []common.Term{
	{Match: []string{"trend", "time series", "over time", "historical", "change", "evolution",
		"increase", "decrease", "growing", "declining", "annual", "yearly"}, Value: "Trend"},
	{Match: []string{"compare", "comparison", "versus", "vs", "between", "difference",
		"relative", "against", "contrast"}, Value: "Comparison"},
	{Match: []string{"distribution", "breakdown", "proportion", "percentage",
		"share", "split", "composition", "makeup", "allocation"}, Value: "Distribution"},
}

func timeRange(query, q string) string {
	years := reTitleYear.FindAllString(query, -1)
	sort.Strings(years)
	switch {
	case len(years) >= 2:
		return fmt.Sprintf("from %s to %s", years[0], years[len(years)-1])
	case len(years) == 1:
		return "in " + years[0]
	case strings.Contains(q, "over time"), strings.Contains(q, "trend"):
		return "over time"
	}
	return ""
}

func subjects(q string) []string {
	if gases := common.AllTerms(q, common.Gases); len(gases) > 0 {
		return gases
	}
	for _, table := range subjectTables {
		var out []string
		for _, v := range common.AllTerms(q, table) {
			out = append(out, v+" Emissions")
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{"Emissions"}
}

func intent(q, chartType string) string {
	if v, ok := common.FirstTerm(q, intents); ok {
		return v
	}
	switch chartType {
	case Line:
		return "Trend"
	case Bar, BarHorizontal:
		return "Comparison"
	case Pie:
		return "Distribution"
	}
	return "Analysis"
}

// Title composes a chart title from the question: subject, intent, location
// and time range, e.g. "CO₂ Trend for Texas from 2000 to 2020".
func Title(query, chartType string) string {
	q := strings.ToLower(query)

	subj := subjects(q)
	parts := []string{strings.Join(subj[:min(2, len(subj))], ", "), intent(q, chartType)}
	if locs := common.Regions(query); len(locs) > 0 {
		parts = append(parts, "for "+strings.Join(locs[:min(2, len(locs))], ", "))
	}
	if tr := timeRange(query, q); tr != "" {
		parts = append(parts, tr)
	}
	return strings.Join(parts, " ")
}
