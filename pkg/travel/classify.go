package travel

import (
	"sort"
	"strings"
)

// Style is the presentation bucket for a derived column.
type Style string

const (
	StyleNone      Style = ""
	StyleUnknown   Style = "unknown"
	StyleMoreInfo  Style = "moreinfo"
	StyleNo        Style = "no"
	StyleRarely    Style = "rarely"
	StyleSometimes Style = "sometimes"
	StyleYes       Style = "yes"
)

// TooltipHeader is the question every preformatted note answers.
const TooltipHeader = "Are U.S. citizens permitted to enter?"

// Label returns the table text for c.
func (c Classification) Label() string {
	switch c {
	case Unknown:
		return "UNKNOWN"
	case SeeURL:
		return "SEE URL"
	case Closed:
		return "CLOSED"
	case MostlyClosed:
		return "MOSTLY CLOSED"
	case PartiallyOpen:
		return "PARTIALLY OPEN"
	case Open:
		return "OPEN"
	}
	return ""
}

// Style returns the bucket for c, keyed 1:1 by value.
func (c Classification) Style() Style {
	switch c {
	case Unknown:
		return StyleUnknown
	case SeeURL:
		return StyleMoreInfo
	case Closed:
		return StyleNo
	case MostlyClosed:
		return StyleRarely
	case PartiallyOpen:
		return StyleSometimes
	case Open:
		return StyleYes
	}
	return StyleNone
}

func (c Classification) String() string { return c.Label() }

// Label returns the table text for r. NotApplicable renders empty.
func (r Requirement) Label() string {
	switch r {
	case NotApplicable:
		return ""
	case RequirementUnknown:
		return "UNKNOWN"
	case Required:
		return "REQUIRED"
	case NotRequired:
		return "NOT REQUIRED"
	}
	return ""
}

// Style returns the bucket for r. A requirement is the unfavorable state,
// so Required is styled "no" and NotRequired "yes".
func (r Requirement) Style() Style {
	switch r {
	case NotApplicable:
		return StyleNone
	case RequirementUnknown:
		return StyleUnknown
	case Required:
		return StyleNo
	case NotRequired:
		return StyleYes
	}
	return StyleNone
}

func (r Requirement) String() string { return r.Label() }

// DerivedFields is everything the table needs for one country.
type DerivedFields struct {
	Openness        Classification `json:"openness"`
	OpennessLabel   string         `json:"openness_label"`
	OpennessStyle   Style          `json:"openness_style"`
	Quarantine      Requirement    `json:"quarantine"`
	QuarantineLabel string         `json:"quarantine_label"`
	QuarantineStyle Style          `json:"quarantine_style"`
	Test            Requirement    `json:"test"`
	TestLabel       string         `json:"test_label"`
	TestStyle       Style          `json:"test_style"`
	LastChanged     int64          `json:"last_changed"`
	Tooltip         string         `json:"tooltip,omitempty"`
	HasTooltip      bool           `json:"has_tooltip"`

	OpennessSortKey    int   `json:"openness_sort_key"`
	QuarantineSortKey  int   `json:"quarantine_sort_key"`
	TestSortKey        int   `json:"test_sort_key"`
	LastChangedSortKey int64 `json:"last_changed_sort_key"`
}

// Normalize applies the parent/child policy rules: a closed border has no
// test or quarantine policy, and nothing is known about a country whose
// openness is unknown.
func Normalize(r CountryRecord) CountryRecord {
	switch r.Classification {
	case Closed:
		r.QuarantineRequired = NotApplicable
		r.TestRequired = NotApplicable
	case Unknown:
		r.QuarantineRequired = RequirementUnknown
		r.TestRequired = RequirementUnknown
		r.LastChanged = 0
	}
	return r
}

// Classify derives the display fields of a record. The only failure is a
// ValidationError for out of range enums.
func Classify(r CountryRecord) (DerivedFields, error) {
	if err := r.Validate(); err != nil {
		return DerivedFields{}, err
	}
	n := Normalize(r)

	d := DerivedFields{
		Openness:        n.Classification,
		OpennessLabel:   n.Classification.Label(),
		OpennessStyle:   n.Classification.Style(),
		Quarantine:      n.QuarantineRequired,
		QuarantineLabel: n.QuarantineRequired.Label(),
		QuarantineStyle: n.QuarantineRequired.Style(),
		Test:            n.TestRequired,
		TestLabel:       n.TestRequired.Label(),
		TestStyle:       n.TestRequired.Style(),
		LastChanged:     n.LastChanged,

		OpennessSortKey:    int(n.Classification),
		QuarantineSortKey:  int(n.QuarantineRequired),
		TestSortKey:        int(n.TestRequired),
		LastChangedSortKey: n.LastChanged,
	}
	d.Tooltip, d.HasTooltip = tooltip(n)
	return d, nil
}

func tooltip(r CountryRecord) (string, bool) {
	if len(r.Preformatted) == 0 {
		return "", false
	}
	if r.Classification == Unknown || r.Classification == SeeURL {
		return "", false
	}
	return TooltipHeader + "\n" + strings.Join(r.Preformatted, "\n"), true
}

// Row is one line of the countries table.
type Row struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	DerivedFields
}

// ClassifyAll classifies every record. Invalid records are skipped and
// reported; they never block the rest of the table.
func ClassifyAll(records []CountryRecord) ([]Row, []error) {
	rows := make([]Row, 0, len(records))
	var errs []error
	for _, r := range records {
		d, err := Classify(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, Row{
			Abbreviation:  NormalizeAbbreviation(r.Abbreviation),
			Name:          r.Name,
			URL:           r.URL,
			DerivedFields: d,
		})
	}
	return rows, errs
}

// SortRows orders rows the way the table opens: openness, quarantine and
// test descending, then URL ascending.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.OpennessSortKey != b.OpennessSortKey {
			return a.OpennessSortKey > b.OpennessSortKey
		}
		if a.QuarantineSortKey != b.QuarantineSortKey {
			return a.QuarantineSortKey > b.QuarantineSortKey
		}
		if a.TestSortKey != b.TestSortKey {
			return a.TestSortKey > b.TestSortKey
		}
		return a.URL < b.URL
	})
}
