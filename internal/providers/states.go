package providers

import "strings"

// usStates maps full US state names to their postal abbreviations.
var usStates = map[string]string{
	"Alabama": "AL", "Alaska": "AK", "Arizona": "AZ", "Arkansas": "AR",
	"California": "CA", "Colorado": "CO", "Connecticut": "CT", "Delaware": "DE",
	"Florida": "FL", "Georgia": "GA", "Hawaii": "HI", "Idaho": "ID",
	"Illinois": "IL", "Indiana": "IN", "Iowa": "IA", "Kansas": "KS",
	"Kentucky": "KY", "Louisiana": "LA", "Maine": "ME", "Maryland": "MD",
	"Massachusetts": "MA", "Michigan": "MI", "Minnesota": "MN", "Mississippi": "MS",
	"Missouri": "MO", "Montana": "MT", "Nebraska": "NE", "Nevada": "NV",
	"New Hampshire": "NH", "New Jersey": "NJ", "New Mexico": "NM", "New York": "NY",
	"North Carolina": "NC", "North Dakota": "ND", "Ohio": "OH", "Oklahoma": "OK",
	"Oregon": "OR", "Pennsylvania": "PA", "Rhode Island": "RI", "South Carolina": "SC",
	"South Dakota": "SD", "Tennessee": "TN", "Texas": "TX", "Utah": "UT",
	"Vermont": "VT", "Virginia": "VA", "Washington": "WA", "West Virginia": "WV",
	"Wisconsin": "WI", "Wyoming": "WY", "District of Columbia": "DC",
}

var usStatesByAbbr = func() map[string]string {
	m := make(map[string]string, len(usStates))
	for name, abbr := range usStates {
		m[abbr] = name
	}
	return m
}()

// stateForms resolves a state given in either form to (full name, abbr).
// If the input matches neither form, both results fall back to the input.
func stateForms(s string) (name, abbr string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}

	upper := strings.ToUpper(s)
	if full, ok := usStatesByAbbr[upper]; ok {
		return full, upper
	}

	for full, ab := range usStates {
		if strings.EqualFold(full, s) {
			return full, ab
		}
	}

	return s, s
}
