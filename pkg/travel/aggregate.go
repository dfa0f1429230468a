package travel

import (
	"encoding/json"
	"sort"
)

// MapPoint is one country on the choropleth.
type MapPoint struct {
	Abbreviation string `json:"code"`
	Score        int    `json:"value"`
	Tooltip      string `json:"tooltip"`
}

// MapScore folds openness and the quarantine requirement of a normalized
// record into a single 0-5 severity.
func MapScore(r CountryRecord) int {
	n := Normalize(r)
	switch n.Classification {
	case Open:
		switch n.QuarantineRequired {
		case NotRequired:
			return 5
		case Required:
			return 4
		}
	case PartiallyOpen:
		switch n.QuarantineRequired {
		case RequirementUnknown, Required, NotRequired:
			return 3
		}
	case MostlyClosed:
		switch n.QuarantineRequired {
		case RequirementUnknown, Required, NotRequired:
			return 2
		}
	case Closed:
		return 2
	}
	return 0
}

func opennessDescription(c Classification) string {
	switch c {
	case Unknown:
		return "has no data"
	case SeeURL:
		return "has more information on the embassy website"
	case Closed:
		return "is not open to U.S. citizens"
	case MostlyClosed:
		return "is mostly closed to U.S. citizens"
	case PartiallyOpen:
		return "is partially open to U.S. citizens"
	case Open:
		return "is open to U.S. citizens"
	}
	return ""
}

func mapTooltip(n CountryRecord) string {
	s := n.Name + " " + opennessDescription(n.Classification)
	if (n.Classification == PartiallyOpen || n.Classification == Open) && n.QuarantineRequired == Required {
		s += " (quarantine required)"
	}
	return s
}

// MapScores scores every country with known openness. Invalid records are
// skipped and reported.
func MapScores(countries []CountryRecord) ([]MapPoint, []error) {
	points := make([]MapPoint, 0, len(countries))
	var errs []error
	for _, c := range countries {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if c.Classification == Unknown {
			continue
		}
		n := Normalize(c)
		points = append(points, MapPoint{
			Abbreviation: NormalizeAbbreviation(n.Abbreviation),
			Score:        MapScore(n),
			Tooltip:      mapTooltip(n),
		})
	}
	return points, errs
}

// Ratio is a fraction that may have no data behind it.
type Ratio struct {
	Value float64
	Valid bool
}

func ratio(num, den int) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: float64(num) / float64(den), Valid: true}
}

// MarshalJSON writes null for a day without data.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or null.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	if err := json.Unmarshal(b, &r.Value); err != nil {
		return err
	}
	r.Valid = true
	return nil
}

// TrendPoint is one day of the trend chart.
type TrendPoint struct {
	Date            string `json:"date"`
	ClosedRatio     Ratio  `json:"closed_ratio"`
	QuarantineRatio Ratio  `json:"quarantine_ratio"`
}

// TrendSeries computes one point per day, ordered by date. Countries with
// unknown status are left out of both denominators.
func TrendSeries(changes map[string]DayCounts) []TrendPoint {
	dates := make([]string, 0, len(changes))
	for d := range changes {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		dc := changes[d]
		c := dc.Classification
		notOpen := c[Closed] + c[MostlyClosed] + c[PartiallyOpen]
		q := dc.QuarantineRequired
		points = append(points, TrendPoint{
			Date:            d,
			ClosedRatio:     ratio(notOpen, notOpen+c[Open]),
			QuarantineRatio: ratio(q[NotRequired], q[NotRequired]+q[Required]),
		})
	}
	return points
}

// Tally counts a snapshot into a DayCounts using normalized values, so a
// closed country is never counted as requiring quarantine.
func Tally(countries []CountryRecord) DayCounts {
	dc := DayCounts{
		Classification:     make(map[Classification]int),
		QuarantineRequired: make(map[Requirement]int),
	}
	for _, c := range countries {
		if c.Validate() != nil {
			continue
		}
		n := Normalize(c)
		dc.Classification[n.Classification]++
		dc.QuarantineRequired[n.QuarantineRequired]++
	}
	return dc
}
