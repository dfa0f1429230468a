// Package travel turns per-country entry restriction facts into the derived
// fields shown in the countries table, the map and the trend chart.
//
// Everything in this package is pure: functions read an immutable snapshot
// and return new values.
package travel

import "strings"

// Classification describes how open a country's border is to U.S. citizens.
// The numeric order is also the table's sort priority.
type Classification int

const (
	Unknown Classification = iota
	SeeURL
	Closed
	MostlyClosed
	PartiallyOpen
	Open
)

// Valid reports whether c is one of the six known values.
func (c Classification) Valid() bool {
	return c >= Unknown && c <= Open
}

// Requirement is the state of a sub-policy (quarantine or test on arrival).
type Requirement int

const (
	// NotApplicable marks a sub-policy of a closed border. It never comes
	// from the feed; only Normalize produces it.
	NotApplicable Requirement = iota - 1
	RequirementUnknown
	Required
	NotRequired
)

// Valid reports whether r is acceptable as a feed value. NotApplicable is
// derived, so it is rejected here.
func (r Requirement) Valid() bool {
	return r >= RequirementUnknown && r <= NotRequired
}

// CountryRecord is one country as published in the feed.
type CountryRecord struct {
	Abbreviation       string         `json:"abbreviation"`
	Name               string         `json:"name"`
	URL                string         `json:"url"`
	Classification     Classification `json:"classification"`
	QuarantineRequired Requirement    `json:"quarantine_required"`
	TestRequired       Requirement    `json:"test_required"`
	LastChanged        int64          `json:"last_changed,omitempty"` // unix seconds, 0 = no data
	Preformatted       []string       `json:"preformatted,omitempty"`
}

// DayCounts is the per-date tally of countries in each bucket.
type DayCounts struct {
	Classification     map[Classification]int `json:"classification"`
	QuarantineRequired map[Requirement]int    `json:"quarantine_required"`
}

// Feed is the top-level document served as data.json.
type Feed struct {
	Time      int64                `json:"time"`
	Countries []CountryRecord      `json:"countries"`
	Changes   map[string]DayCounts `json:"changes"`
}

// NormalizeAbbreviation maps the non-standard codes found in the directory
// to ISO alpha-2 and uppercases the rest.
func NormalizeAbbreviation(abbr string) string {
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	switch abbr {
	case "CHINA":
		return "CN"
	}
	return abbr
}
