// Package dataset describes the climate datasets a server can front: their
// schema prompts, model instructions and data-only fallback insights.
package dataset

import (
	"fmt"
	"strings"

	"github.com/i474232898/climategpt-servers/internal/common"
	"github.com/i474232898/climategpt-servers/internal/sqlitedb"
)

// Profile configures a server for one dataset.
type Profile struct {
	// Name is the registry key, e.g. "emissions".
	Name string
	// Server is the name reported in metadata.server_used.
	Server       string
	Title        string
	Description  string
	Capabilities []string
	Tables       []string
	TimeRange    string

	SystemPrompt  string
	Schema        string
	Guidance      string
	SampleQueries string
	// InsightFocus lists what an insight should cover.
	InsightFocus string

	// Forecasting enables the emissions forecast path.
	Forecasting bool

	// Fallback summarises a result without the model.
	Fallback func(res *sqlitedb.Result) string
}

// DefaultResponses are canned answers used when the model is unreachable.
var DefaultResponses = []common.Term{
	{Match: []string{"greenhouse gas"}, Value: "Greenhouse gases include carbon dioxide (CO2), methane (CH4), nitrous oxide (N2O), and fluorinated gases. These gases trap heat in the Earth's atmosphere, contributing to global warming."},
	{Match: []string{"global warming"}, Value: "Global warming is the long-term heating of Earth's climate system observed since the pre-industrial period due to human activities, primarily fossil fuel burning, which increases heat-trapping greenhouse gas levels in Earth's atmosphere."},
	{Match: []string{"climate change"}, Value: "Climate change refers to long-term shifts in temperatures and weather patterns. Since the 1800s human activities have been the main driver, primarily the burning of fossil fuels like coal, oil, and gas, which produces heat-trapping gases."},
}

// DefaultResponse returns the canned answer matching query, if any.
func DefaultResponse(query string) (string, bool) {
	return common.FirstTerm(strings.ToLower(query), DefaultResponses)
}

var profiles = map[string]*Profile{
	"emissions": emissions,
	"sealevel":  seaLevel,
	"wildfires": wildfires,
}

// Lookup returns the profile for name.
func Lookup(name string) (*Profile, error) {
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return p, nil
}

// ClassificationPrompt asks the model to either answer the query or plan SQL
// against this dataset.
func (p *Profile) ClassificationPrompt(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert in climate data analysis. Process this user query:\n\nUSER QUERY: %q\n\n", query)
	b.WriteString("First decide whether this is:\n")
	b.WriteString("1) a general knowledge question about climate that can be answered without database access, or\n")
	fmt.Fprintf(&b, "2) a query that requires the %s database.\n\n", p.Title)
	b.WriteString("The database has the following structure:\n")
	b.WriteString(p.Schema)
	b.WriteString("\n")
	b.WriteString(p.Guidance)
	b.WriteString("\nRULES FOR SQL GENERATION:\n")
	b.WriteString("1. Use ONLY the exact table and column names shown in the schema.\n")
	b.WriteString("2. Generate SQLite compatible SELECT statements only.\n")
	b.WriteString("3. Never start a query with ANALYZE.\n\n")
	if p.SampleQueries != "" {
		b.WriteString("EXAMPLE SQL QUERIES THAT WORK:\n")
		b.WriteString(p.SampleQueries)
		b.WriteString("\n")
	}
	b.WriteString(`YOUR RESPONSE MUST BE VALID JSON with this structure:
{
  "query_type": "general_knowledge" or "database",
  "answer": "answer text (general_knowledge only)",
  "execution_plan": {
    "steps": [
      {"id": "step1", "description": "what this step does", "sql": "SQL for this step"}
    ]
  }
}
`)
	return b.String()
}
