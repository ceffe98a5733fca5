package forecast

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/i474232898/climategpt-servers/internal/common"
)

const (
	// LastObservedYear is the final year of the emissions inventory.
	LastObservedYear = 2022
	DefaultHorizon   = 10
	MaxHorizon       = 100

	TotalGreenhouseGas = "Total Greenhouse Gas"
)

// Request is a parsed forecast question.
type Request struct {
	Horizon      int    `json:"forecast_years"`
	EmissionType string `json:"emission_type"`
	Region       string `json:"region,omitempty"`
	Sector       string `json:"sector,omitempty"`
}

var (
	reYear  = regexp.MustCompile(`\d{4}`)
	reNext  = regexp.MustCompile(`next\s+(\d+)\s+years?`)
	reUntil = regexp.MustCompile(`(?:till|until|through)\s+(\d{4})`)
)

var forecastKeywords = []string{"forecast", "predict", "projection", "future trend", "future emission"}

// gasCategories maps an emission type to the ghg_category values it covers.
// Types absent here are not filtered.
var gasCategories = map[string][]string{
	"CO₂":             {"CO2"},
	"CH₄":             {"CH4"},
	"N₂O":             {"N2O"},
	"HFCs":            {"HFCs"},
	"PFCs":            {"PFCs"},
	"SF₆":             {"SF6"},
	"NF₃":             {"NF3"},
	"Fluorinated Gas": {"HFCs", "PFCs", "SF6", "NF3"},
}

var sectors = []common.Term{
	{Match: []string{"transportation", "transport"}, Value: "Transportation"},
	{Match: []string{"electric power"}, Value: "Electric Power"},
	{Match: []string{"energy"}, Value: "Energy"},
	{Match: []string{"industrial processes"}, Value: "Industrial Processes"},
	{Match: []string{"industry"}, Value: "Industry"},
	{Match: []string{"industrial"}, Value: "Industrial"},
	{Match: []string{"agriculture"}, Value: "Agriculture"},
	{Match: []string{"commercial"}, Value: "Commercial"},
	{Match: []string{"residential"}, Value: "Residential"},
	{Match: []string{"waste"}, Value: "Waste"},
	{Match: []string{"land use change and forestry", "lulucf"}, Value: "LULUCF"},
	{Match: []string{"forestry"}, Value: "Forestry"},
}

// IsForecast reports whether query asks for a projection.
func IsForecast(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return common.HasAny(q, forecastKeywords...)
}

// Detect parses a forecast question. ok is false when query is not a
// forecast request.
func Detect(query string) (req Request, ok bool) {
	if !IsForecast(query) {
		return Request{}, false
	}
	q := strings.ToLower(strings.TrimSpace(query))

	req = Request{
		Horizon:      horizon(query, q),
		EmissionType: TotalGreenhouseGas,
	}
	if rs := common.Regions(query); len(rs) > 0 {
		req.Region = rs[0]
	}
	if t, found := common.FirstTerm(q, common.Gases); found {
		req.EmissionType = t
	}
	if s, found := common.FirstTerm(q, sectors); found {
		req.Sector = s
	}
	return req, true
}

func horizon(raw, q string) int {
	h := DefaultHorizon
	latest := 0
	for _, m := range reYear.FindAllString(raw, -1) {
		if y, _ := strconv.Atoi(m); y > LastObservedYear && y > latest {
			latest = y
		}
	}
	switch {
	case latest > 0:
		h = latest - LastObservedYear
	case strings.Contains(q, "next"):
		if m := reNext.FindStringSubmatch(q); m != nil {
			h, _ = strconv.Atoi(m[1])
		}
	case common.HasAny(q, "till", "until", "through"):
		if m := reUntil.FindStringSubmatch(q); m != nil {
			if y, _ := strconv.Atoi(m[1]); y > LastObservedYear {
				h = y - LastObservedYear
			}
		}
	}
	if h < 1 {
		h = DefaultHorizon
	}
	return min(h, MaxHorizon)
}
