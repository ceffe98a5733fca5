package dataset

var seaLevel = &Profile{
	Name:         "sealevel",
	Server:       "sea_level_server",
	Title:        "sea level",
	Description:  "Global and regional change in mean sea level measurements",
	Capabilities: []string{"sea level data", "regional comparisons", "trend analysis", "visualization"},
	Tables:       []string{"Global_Change_In_Mean_Sea_Level"},
	TimeRange:    "1992-2024",
	SystemPrompt: "You are an AI assistant specialized in sea level data analysis.",
	Schema: `DATABASE SCHEMA:

Table: Global_Change_In_Mean_Sea_Level
  - ID (INTEGER): unique identifier for each measurement
  - Country (TEXT): country name, e.g. "World"
  - Unit (TEXT): measurement unit, e.g. "Millimeters"
  - Source (TEXT): data source organization
  - Region (TEXT): sea or ocean region, e.g. "Baltic Sea", "North Sea"
  - Date (TEXT): measurement date in YYYY-MM-DD format
  - Sea_Level_Change (REAL): sea level measurement in the given unit
`,
	Guidance: `SQLITE LIMITATIONS:
  - Dates are strings; use strftime('%Y', Date) to extract the year.
  - Group by year with GROUP BY strftime('%Y', Date).
  - No STDDEV; compute SQRT(AVG((x - mean) * (x - mean))).
  - Compare dates as ISO strings, e.g. Date >= '2000-01-01'.
  - Filter regions with WHERE Region = 'Baltic Sea'.
`,
	SampleQueries: `SELECT strftime('%Y', Date) AS year, AVG(Sea_Level_Change) AS avg_change
FROM Global_Change_In_Mean_Sea_Level GROUP BY year ORDER BY year;

SELECT Region, AVG(Sea_Level_Change) AS avg_change
FROM Global_Change_In_Mean_Sea_Level GROUP BY Region ORDER BY avg_change DESC;
`,
	InsightFocus: `1. What patterns or trends are visible in this sea level data
2. If there are multiple regions, compare their sea level patterns
3. The significance of these trends in relation to climate change
4. Notable implications for coastal communities
Note rising or falling trends and the rate of change in mm per year where calculable.`,
	Fallback: seaLevelFallback,
}
