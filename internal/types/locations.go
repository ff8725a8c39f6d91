package types

import (
	"slices"
	"strings"
)

// locationCatalogue maps the countries offered for job search to their states or regions
var locationCatalogue = map[string][]string{
	"United States": {
		"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut", "Delaware", "Florida", "Georgia",
		"Hawaii", "Idaho", "Illinois", "Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine", "Maryland",
		"Massachusetts", "Michigan", "Minnesota", "Mississippi", "Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
		"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio", "Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
		"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia", "Washington", "West Virginia", "Wisconsin", "Wyoming",
	},
	"Canada": {
		"Alberta", "British Columbia", "Manitoba", "New Brunswick", "Newfoundland and Labrador", "Nova Scotia", "Ontario",
		"Prince Edward Island", "Quebec", "Saskatchewan",
	},
	"United Kingdom": {
		"England", "Scotland", "Wales", "Northern Ireland", "London", "Manchester", "Birmingham", "Leeds", "Glasgow",
	},
	"Australia": {
		"New South Wales", "Queensland", "South Australia", "Tasmania", "Victoria", "Western Australia",
		"Australian Capital Territory", "Northern Territory",
	},
	"India": {
		"Andhra Pradesh", "Delhi", "Gujarat", "Karnataka", "Kerala", "Maharashtra", "Punjab", "Tamil Nadu", "Telangana",
		"Uttar Pradesh", "West Bengal",
	},
	"Germany": {
		"Bavaria", "Berlin", "Brandenburg", "Hamburg", "Hesse", "Lower Saxony", "North Rhine-Westphalia", "Saxony",
	},
	"France": {
		"Île-de-France (Paris)", "Auvergne-Rhône-Alpes", "Nouvelle-Aquitaine", "Occitanie", "Hauts-de-France",
		"Provence-Alpes-Côte d'Azur",
	},
	"Singapore": {"Central Region", "East Region", "North Region", "North-East Region", "West Region"},
}

// countryOrder is the display order of the catalogue
var countryOrder = []string{
	"United States", "Canada", "United Kingdom", "Australia", "India", "Germany", "France", "Singapore",
}

// Countries returns the catalogue countries in display order
func Countries() []string {
	return slices.Clone(countryOrder)
}

// StatesOf returns the states or regions of a catalogue country (case-insensitive).
// The second result is false when the country is not in the catalogue.
func StatesOf(country string) ([]string, bool) {
	for _, name := range countryOrder {
		if strings.EqualFold(name, strings.TrimSpace(country)) {
			return slices.Clone(locationCatalogue[name]), true
		}
	}
	return nil, false
}

// LocationCatalogue returns a copy of the full country to states table
func LocationCatalogue() map[string][]string {
	out := make(map[string][]string, len(locationCatalogue))
	for country, states := range locationCatalogue {
		out[country] = slices.Clone(states)
	}
	return out
}
