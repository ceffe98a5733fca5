package forecast

import (
	"strings"
)

// featureColumns are the per-year breakdowns selected next to the total.
var featureColumns = []struct {
	name string
	when string
}{
	{"fossil_fuel_emissions", "s.sector = 'Energy' AND s.subsector = 'Fossil Fuel Combustion'"},
	{"fugitive_emissions", "s.sector = 'Energy' AND s.subsector = 'Fugitive'"},
	{"transportation_emissions", "s.category = 'Transportation'"},
	{"industrial_process_emissions", "s.sector = 'Industrial Processes'"},
	{"agriculture_emissions", "s.sector = 'Agriculture'"},
	{"coal_emissions", "f.fuel1 = 'Coal'"},
	{"natural_gas_emissions", "f.fuel1 = 'Natural Gas'"},
	{"petroleum_emissions", "f.fuel1 = 'Petroleum'"},
}

// BuildQuery returns the history query for req and its bound arguments.
// Regions and gases are always passed as parameters.
func BuildQuery(req Request) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT\n    e.year,\n    SUM(e.emissions) AS total_emissions")
	for _, c := range featureColumns {
		b.WriteString(",\n    SUM(CASE WHEN ")
		b.WriteString(c.when)
		b.WriteString(" THEN e.emissions ELSE 0 END) AS ")
		b.WriteString(c.name)
	}
	b.WriteString(`
FROM Emissions e
JOIN Sectors s ON e.sector_id = s.sector_id
JOIN Fuels f ON e.fuel_id = f.fuel_id
JOIN Greenhouse_Gases gg ON e.ghg_id = gg.ghg_id`)

	var where []string
	var args []any
	if cats := gasCategories[req.EmissionType]; len(cats) > 0 {
		where = append(where, "gg.ghg_category IN ("+placeholders(len(cats))+")")
		for _, c := range cats {
			args = append(args, c)
		}
	}
	if req.Region != "" {
		b.WriteString("\nJOIN Geography g ON e.geo_id = g.geo_id")
		where = append(where, "g.region_name = ?")
		args = append(args, req.Region)
	}
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\nGROUP BY e.year\nORDER BY e.year")
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
