package dataset

var emissions = &Profile{
	Name:         "emissions",
	Server:       "emissions_server",
	Title:        "greenhouse gas emissions",
	Description:  "U.S. greenhouse gas emissions by state, sector, fuel and gas",
	Capabilities: []string{"emissions data", "sector analysis", "state comparisons", "forecasting", "visualization"},
	Tables:       []string{"Emissions", "Sectors", "Fuels", "Geography", "Greenhouse_Gases"},
	TimeRange:    "1990-2022",
	SystemPrompt: "You are an AI assistant specialized in climate data analysis.",
	Forecasting:  true,
	Schema: `DATABASE SCHEMA:

Table: Greenhouse_Gases
  - ghg_id (INTEGER PRIMARY KEY)
  - ghg_name (TEXT): e.g. Carbon Dioxide, Methane, Nitrous Oxide
  - ghg_category (TEXT): e.g. CO2, CH4, N2O, HFCs, PFCs, SF6, NF3

Table: Sectors
  - sector_id (INTEGER PRIMARY KEY)
  - sector (TEXT): e.g. Agriculture, Energy, Industrial Processes, Waste
  - subsector (TEXT): e.g. Fossil Fuel Combustion, Fugitive
  - category (TEXT): e.g. Transportation, Electric Power

Table: Fuels
  - fuel_id (INTEGER PRIMARY KEY)
  - fuel1 (TEXT): primary fuel, e.g. Coal, Natural Gas, Petroleum
  - fuel2 (TEXT): secondary classification

Table: Geography
  - geo_id (INTEGER PRIMARY KEY)
  - region_name (TEXT): state or region name, e.g. Texas
  - geo_ref (TEXT): two letter code, e.g. TX

Table: Emissions
  - emission_id (INTEGER PRIMARY KEY)
  - year (INTEGER): 1990 to 2022
  - geo_id, sector_id, fuel_id, ghg_id (INTEGER): foreign keys
  - emissions (REAL): million metric tons CO2 equivalent
`,
	Guidance: `SQLITE LIMITATIONS:
  - No STDDEV; compute SQRT(AVG((x - mean) * (x - mean))) with a subquery for the mean.
  - Use GROUP_CONCAT instead of STRING_AGG.
  - Use CAST(x AS REAL) before dividing integers.
  - Prefer several simple steps over one deeply nested query.
`,
	SampleQueries: `SELECT e.year, SUM(e.emissions) AS total_emissions
FROM Emissions e JOIN Greenhouse_Gases gg ON e.ghg_id = gg.ghg_id
WHERE gg.ghg_name = 'Carbon Dioxide' GROUP BY e.year ORDER BY e.year;

SELECT g.region_name, SUM(e.emissions) AS total_emissions
FROM Emissions e JOIN Geography g ON e.geo_id = g.geo_id
WHERE g.region_name IN ('California', 'Texas') AND e.year = 2020
GROUP BY g.region_name;

SELECT s.sector, SUM(e.emissions) AS total_emissions
FROM Emissions e JOIN Sectors s ON e.sector_id = s.sector_id
WHERE e.year = 2020 GROUP BY s.sector ORDER BY total_emissions DESC;
`,
	InsightFocus: `1. What patterns or trends are visible in this data
2. How this relates to climate change
3. Any notable implications of these findings`,
	Fallback: summaryFallback("climate data",
		"This information can help understand greenhouse gas emissions patterns."),
}
