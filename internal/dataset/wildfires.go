package dataset

var wildfires = &Profile{
	Name:         "wildfires",
	Server:       "wildfires_server",
	Title:        "wildfire detection",
	Description:  "Satellite active fire detections (MODIS Aqua/Terra)",
	Capabilities: []string{"wildfire data", "fire intensity", "satellite comparisons", "visualization"},
	Tables:       []string{"fire_data"},
	TimeRange:    "2015-present",
	SystemPrompt: "You are an AI assistant specialized in wildfire data analysis.",
	Schema: `DATABASE SCHEMA:

Table: fire_data
  - latitude, longitude (REAL): location
  - brightness (REAL): fire intensity, temperature in Kelvin
  - scan, track (REAL): pixel resolution in kilometers
  - acq_date (DATE): acquisition date, YYYY-MM-DD
  - acq_time (TIME): acquisition time, HHMM
  - satellite (TEXT): Aqua or Terra
  - instrument (TEXT): MODIS
  - confidence (INTEGER): detection confidence 0-100
  - version (REAL): algorithm version
  - bright_t31 (REAL): channel 31 brightness temperature
  - frp (REAL): fire radiative power in megawatts
  - daynight (TEXT): D or N
  - type (INTEGER): 1 = active fire, 0 and 2 = other
`,
	Guidance: `SQLITE LIMITATIONS:
  - Extract the year with strftime('%Y', acq_date).
  - Extract the hour with CAST(substr(acq_time, 1, 2) AS INTEGER).
  - Group regions with CASE on latitude/longitude ranges, e.g. California is
    latitude BETWEEN 32.5 AND 42 AND longitude BETWEEN -124.5 AND -114.1.
  - Use GROUP_CONCAT instead of STRING_AGG.
`,
	SampleQueries: `SELECT acq_date, COUNT(*) AS fire_count FROM fire_data
WHERE type = 1 GROUP BY acq_date ORDER BY acq_date;

SELECT satellite, COUNT(*) AS detection_count FROM fire_data
WHERE type = 1 GROUP BY satellite;
`,
	InsightFocus: `1. What patterns or trends are visible in this data
2. How this relates to climate change and fire risk
3. Any notable implications of these findings`,
	Fallback: summaryFallback("wildfire data",
		"This information can help understand wildfire activity patterns."),
}
