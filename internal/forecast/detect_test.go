package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		query string
		ok    bool
		want  Request
	}{
		{"What were total emissions in 2020?", false, Request{}},
		{"Forecast emissions", true, Request{Horizon: 10, EmissionType: TotalGreenhouseGas}},
		{"Predict CO2 emissions for Texas through 2030", true, Request{Horizon: 8, EmissionType: "CO₂", Region: "Texas"}},
		{"predict methane emissions in the next 5 years", true, Request{Horizon: 5, EmissionType: "CH₄"}},
		{"projection of transportation emissions until 2040 in CA", true, Request{Horizon: 18, EmissionType: TotalGreenhouseGas, Region: "California", Sector: "Transportation"}},
		{"forecast ghg for west virginia between 2025 and 2035", true, Request{Horizon: 13, EmissionType: "Greenhouse Gas", Region: "West Virginia"}},
		{"forecast co2e in industrial processes", true, Request{Horizon: 10, EmissionType: "CO₂e", Sector: "Industrial Processes"}},
		{"forecast emissions in the next 0 years", true, Request{Horizon: 10, EmissionType: TotalGreenhouseGas}},
		{"forecast emissions for Washington DC", true, Request{Horizon: 10, EmissionType: TotalGreenhouseGas, Region: "D.C."}},
		{"predict emissions in 3000", true, Request{Horizon: MaxHorizon, EmissionType: TotalGreenhouseGas}},
	}
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			got, ok := Detect(c.query)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestBuildQuery(t *testing.T) {
	sql, args := BuildQuery(Request{EmissionType: TotalGreenhouseGas})
	assert.Empty(t, args)
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "Geography")
	assert.Contains(t, sql, "AS petroleum_emissions")
	assert.Contains(t, sql, "GROUP BY e.year\nORDER BY e.year")

	sql, args = BuildQuery(Request{EmissionType: "Fluorinated Gas", Region: "Texas"})
	assert.Equal(t, []any{"HFCs", "PFCs", "SF6", "NF3", "Texas"}, args)
	assert.Contains(t, sql, "JOIN Geography g ON e.geo_id = g.geo_id")
	assert.Contains(t, sql, "WHERE gg.ghg_category IN (?, ?, ?, ?) AND g.region_name = ?")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "CO₂ Emissions for Texas Forecast", Title(Request{EmissionType: "CO₂", Region: "Texas"}))
	assert.Equal(t, "Total Greenhouse Gas Emissions Forecast", Title(Request{}))
}
