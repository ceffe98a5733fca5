package common

import (
	"regexp"
	"strings"
)

// Gases maps spellings of greenhouse gases to display names. Compound
// spellings come first so "co2e" is not read as "co2".
var Gases = []Term{
	{Match: []string{"co2e", "co2 equivalent"}, Value: "CO₂e"},
	{Match: []string{"co2", "carbon dioxide"}, Value: "CO₂"},
	{Match: []string{"ch4", "methane"}, Value: "CH₄"},
	{Match: []string{"n2o", "nitrous oxide"}, Value: "N₂O"},
	{Match: []string{"greenhouse gas", "ghg"}, Value: "Greenhouse Gas"},
	{Match: []string{"hydrofluorocarbons", "hfcs"}, Value: "HFCs"},
	{Match: []string{"perfluorocarbons", "pfcs"}, Value: "PFCs"},
	{Match: []string{"sulfur hexafluoride", "sf6"}, Value: "SF₆"},
	{Match: []string{"nitrogen trifluoride", "nf3"}, Value: "NF₃"},
	{Match: []string{"fluorinated"}, Value: "Fluorinated Gas"},
}

// AllTerms returns the values of every term matching s, in table order.
func AllTerms(s string, terms []Term) []string {
	var out []string
	for _, t := range terms {
		if HasAny(s, t.Match...) {
			out = append(out, t.Value)
		}
	}
	return out
}

type region struct {
	name    string
	code    string
	display string
}

// regions lists names longest first so "west virginia" is consumed before
// "virginia" is tried.
var regions = []region{
	{"district of columbia", "DC", "D.C."},
	{"washington, d.c", "DC", "D.C."}, {"washington d.c", "DC", "D.C."},
	{"washington, dc", "DC", "D.C."}, {"washington dc", "DC", "D.C."},
	{"us territories", "", "U.S. Territories"},
	{"federal offshore", "", "Federal Offshore"},
	{"united states", "", "U.S."},
	{"new hampshire", "NH", ""}, {"new jersey", "NJ", ""}, {"new mexico", "NM", ""}, {"new york", "NY", ""},
	{"north carolina", "NC", ""}, {"north dakota", "ND", ""},
	{"south carolina", "SC", ""}, {"south dakota", "SD", ""},
	{"rhode island", "RI", ""}, {"west virginia", "WV", ""},
	{"alabama", "AL", ""}, {"alaska", "AK", ""}, {"arizona", "AZ", ""}, {"arkansas", "AR", ""},
	{"california", "CA", ""}, {"colorado", "CO", ""}, {"connecticut", "CT", ""}, {"delaware", "DE", ""},
	{"florida", "FL", ""}, {"georgia", "GA", ""}, {"hawaii", "HI", ""}, {"idaho", "ID", ""},
	{"illinois", "IL", ""}, {"indiana", "IN", ""}, {"iowa", "IA", ""}, {"kansas", "KS", ""},
	{"kentucky", "KY", ""}, {"louisiana", "LA", ""}, {"maine", "ME", ""}, {"maryland", "MD", ""},
	{"massachusetts", "MA", ""}, {"michigan", "MI", ""}, {"minnesota", "MN", ""}, {"mississippi", "MS", ""},
	{"missouri", "MO", ""}, {"montana", "MT", ""}, {"nebraska", "NE", ""}, {"nevada", "NV", ""},
	{"ohio", "OH", ""}, {"oklahoma", "OK", ""}, {"oregon", "OR", ""}, {"pennsylvania", "PA", ""},
	{"tennessee", "TN", ""}, {"texas", "TX", ""}, {"utah", "UT", ""}, {"vermont", "VT", ""},
	{"virginia", "VA", ""}, {"washington", "WA", ""}, {"wisconsin", "WI", ""}, {"wyoming", "WY", ""},
	{"territories", "", "U.S. Territories"},
	{"national", "", "National"},
	{"usa", "US", "U.S."},
}

func (r region) label() string {
	if r.display != "" {
		return r.display
	}
	words := strings.Fields(r.name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var reCodeToken = regexp.MustCompile(`\b[A-Z]{2}\b`)

// Regions returns the distinct regions named in query, in table order. Full
// names match case-insensitively on word boundaries. Two-letter postal codes
// only count when written in capitals, so "in" and "or" never name a state.
func Regions(query string) []string {
	q := strings.ToLower(query)
	seen := map[string]bool{}
	var out []string
	add := func(r region) {
		if l := r.label(); !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}

	for _, r := range regions {
		re := wordRegexp(r.name)
		if re.MatchString(q) {
			add(r)
			q = re.ReplaceAllStringFunc(q, func(m string) string { return strings.Repeat(" ", len(m)) })
		}
	}

	codes := map[string]bool{}
	for _, tok := range reCodeToken.FindAllString(query, -1) {
		codes[tok] = true
	}
	for _, r := range regions {
		if r.code != "" && codes[r.code] {
			add(r)
		}
	}
	return out
}
