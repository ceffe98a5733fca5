// Package sqlitedbtest builds small SQLite fixtures for tests.
package sqlitedbtest

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Build creates a database file in a temp dir and runs the statements.
func Build(t testing.TB, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer conn.Close()

	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("fixture statement %q: %v", s, err)
		}
	}
	return path
}

const emissionsSchema = `
CREATE TABLE Greenhouse_Gases (ghg_id INTEGER PRIMARY KEY, ghg_name TEXT, ghg_category TEXT);
CREATE TABLE Sectors (sector_id INTEGER PRIMARY KEY, sector TEXT, subsector TEXT, category TEXT);
CREATE TABLE Fuels (fuel_id INTEGER PRIMARY KEY, fuel1 TEXT, fuel2 TEXT);
CREATE TABLE Geography (geo_id INTEGER PRIMARY KEY, region_name TEXT, geo_ref TEXT);
CREATE TABLE Emissions (
	emission_id INTEGER PRIMARY KEY,
	year INTEGER NOT NULL,
	geo_id INTEGER REFERENCES Geography(geo_id),
	sector_id INTEGER REFERENCES Sectors(sector_id),
	fuel_id INTEGER REFERENCES Fuels(fuel_id),
	ghg_id INTEGER REFERENCES Greenhouse_Gases(ghg_id),
	emissions REAL
);
INSERT INTO Greenhouse_Gases VALUES (1, 'Carbon Dioxide', 'CO2'), (2, 'Methane', 'CH4');
INSERT INTO Sectors VALUES
	(1, 'Energy', 'Fossil Fuel Combustion', 'Electric Power'),
	(2, 'Agriculture', 'Enteric Fermentation', 'Livestock'),
	(3, 'Energy', 'Fossil Fuel Combustion', 'Transportation');
INSERT INTO Fuels VALUES (1, 'Coal', 'Bituminous'), (2, 'Natural Gas', 'Pipeline'), (3, 'Petroleum', 'Gasoline');
INSERT INTO Geography VALUES (1, 'Texas', 'TX'), (2, 'California', 'CA'), (3, 'Vermont', 'VT');
`

// Emissions returns a database with the emissions star schema and yearly
// rows for 2000-2022. Vermont only has data from 2020 on.
func Emissions(t testing.TB) string {
	t.Helper()
	stmts := []string{emissionsSchema}
	id := 1
	for year := 2000; year <= 2022; year++ {
		k := float64(year - 2000)
		rows := []struct {
			geo, sector, fuel, ghg int
			value                  float64
		}{
			{1, 1, 1, 1, 300 - 4*k + 3*math.Sin(k)},
			{1, 3, 3, 1, 120 + 2*k + math.Cos(k)},
			{1, 2, 2, 2, 40 + 0.5*k},
			{2, 1, 2, 1, 200 - 2*k + 2*math.Sin(k/2)},
			{2, 3, 3, 1, 150 + k},
			{2, 2, 2, 2, 30 + 0.2*k},
		}
		if year >= 2020 {
			rows = append(rows, struct {
				geo, sector, fuel, ghg int
				value                  float64
			}{3, 1, 1, 1, 5})
		}
		for _, r := range rows {
			stmts = append(stmts, fmt.Sprintf(
				"INSERT INTO Emissions VALUES (%d, %d, %d, %d, %d, %d, %f)",
				id, year, r.geo, r.sector, r.fuel, r.ghg, r.value))
			id++
		}
	}
	return Build(t, "emissions.db", stmts...)
}

// SeaLevel returns a database with a small Global_Change_In_Mean_Sea_Level table.
func SeaLevel(t testing.TB) string {
	t.Helper()
	stmts := []string{`CREATE TABLE Global_Change_In_Mean_Sea_Level (
		ID INTEGER PRIMARY KEY, Country TEXT, Unit TEXT, Source TEXT,
		Region TEXT, Date TEXT, Sea_Level_Change REAL)`}
	id := 1
	for _, region := range []string{"Baltic Sea", "North Sea"} {
		for year := 1995; year <= 2000; year++ {
			stmts = append(stmts, fmt.Sprintf(
				"INSERT INTO Global_Change_In_Mean_Sea_Level VALUES (%d, 'World', 'Millimeters', 'NOAA', '%s', '%d-01-01', %f)",
				id, region, year, float64(year-1995)*2.5))
			id++
		}
	}
	return Build(t, "sealevel.db", stmts...)
}
