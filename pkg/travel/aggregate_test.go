package travel

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestMapScore(t *testing.T) {
	tests := []struct {
		c    Classification
		q    Requirement
		want int
	}{
		{Open, NotRequired, 5},
		{Open, Required, 4},
		{Open, RequirementUnknown, 0},
		{PartiallyOpen, RequirementUnknown, 3},
		{PartiallyOpen, Required, 3},
		{PartiallyOpen, NotRequired, 3},
		{MostlyClosed, RequirementUnknown, 2},
		{MostlyClosed, Required, 2},
		{MostlyClosed, NotRequired, 2},
		{Closed, RequirementUnknown, 2},
		{Closed, Required, 2},
		{Closed, NotRequired, 2},
		{SeeURL, Required, 0},
		{SeeURL, NotRequired, 0},
		{Unknown, NotRequired, 0},
	}
	for _, tt := range tests {
		got := MapScore(CountryRecord{Classification: tt.c, QuarantineRequired: tt.q})
		if got != tt.want {
			t.Fatalf("MapScore(%d, %d) = %d, want %d", tt.c, tt.q, got, tt.want)
		}
	}
}

func TestMapScores_SkipsUnknown(t *testing.T) {
	countries := []CountryRecord{
		{Abbreviation: "MX", Name: "Mexico", Classification: Open, QuarantineRequired: NotRequired},
		{Abbreviation: "AQ", Name: "Nowhere", Classification: Unknown},
		{Abbreviation: "CHINA", Name: "China", Classification: Closed},
		{Abbreviation: "ZZ", Name: "Bad", Classification: 42},
		{Abbreviation: "IS", Name: "Iceland", Classification: PartiallyOpen, QuarantineRequired: Required},
	}
	points, errs := MapScores(countries)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d: %#v", len(points), points)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if points[1].Abbreviation != "CN" || points[1].Score != 2 {
		t.Fatalf("unexpected china point: %#v", points[1])
	}
	if !strings.HasSuffix(points[2].Tooltip, "(quarantine required)") {
		t.Fatalf("expected quarantine clause, got %q", points[2].Tooltip)
	}
	if strings.Contains(points[0].Tooltip, "quarantine") {
		t.Fatalf("unexpected quarantine clause: %q", points[0].Tooltip)
	}
}

func TestMapScores_NoQuarantineClauseWhenClosed(t *testing.T) {
	points, _ := MapScores([]CountryRecord{
		{Name: "Closedland", Classification: MostlyClosed, QuarantineRequired: Required},
	})
	if strings.Contains(points[0].Tooltip, "quarantine") {
		t.Fatalf("quarantine clause only applies to open countries, got %q", points[0].Tooltip)
	}
}

func TestTrendSeries_Example(t *testing.T) {
	changes := map[string]DayCounts{
		"2021-01-01": {
			Classification:     map[Classification]int{Closed: 1, MostlyClosed: 0, PartiallyOpen: 0, Open: 3},
			QuarantineRequired: map[Requirement]int{Required: 1, NotRequired: 3},
		},
	}
	got := TrendSeries(changes)
	if len(got) != 1 {
		t.Fatalf("expected 1 point, got %d", len(got))
	}
	if !got[0].ClosedRatio.Valid || math.Abs(got[0].ClosedRatio.Value-0.25) > 1e-9 {
		t.Fatalf("closed ratio = %#v, want 0.25", got[0].ClosedRatio)
	}
	if !got[0].QuarantineRatio.Valid || math.Abs(got[0].QuarantineRatio.Value-0.75) > 1e-9 {
		t.Fatalf("quarantine ratio = %#v, want 0.75", got[0].QuarantineRatio)
	}
}

func TestTrendSeries_SortedAndComplete(t *testing.T) {
	changes := map[string]DayCounts{
		"2021-03-01": {Classification: map[Classification]int{Open: 1}},
		"2020-12-31": {Classification: map[Classification]int{Closed: 1}},
		"2021-01-15": {},
	}
	got := TrendSeries(changes)
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Date >= got[i].Date {
			t.Fatalf("series not ascending: %v", got)
		}
	}
}

func TestTrendSeries_ZeroDenominator(t *testing.T) {
	got := TrendSeries(map[string]DayCounts{
		"2021-01-01": {Classification: map[Classification]int{Unknown: 10, SeeURL: 4}},
	})
	if got[0].ClosedRatio.Valid || got[0].QuarantineRatio.Valid {
		t.Fatalf("expected no-data ratios, got %#v", got[0])
	}
	b, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"closed_ratio":null`) {
		t.Fatalf("expected null closed_ratio, got %s", b)
	}
}

func TestTally(t *testing.T) {
	dc := Tally([]CountryRecord{
		{Classification: Closed, QuarantineRequired: Required},
		{Classification: Open, QuarantineRequired: NotRequired},
		{Classification: Open, QuarantineRequired: Required},
		{Classification: Unknown, QuarantineRequired: Required},
	})
	if dc.Classification[Open] != 2 || dc.Classification[Closed] != 1 || dc.Classification[Unknown] != 1 {
		t.Fatalf("unexpected classification counts: %v", dc.Classification)
	}
	if dc.QuarantineRequired[Required] != 1 {
		t.Fatalf("closed and unknown countries must not count as required, got %v", dc.QuarantineRequired)
	}
	if dc.QuarantineRequired[NotApplicable] != 1 || dc.QuarantineRequired[RequirementUnknown] != 1 {
		t.Fatalf("unexpected quarantine counts: %v", dc.QuarantineRequired)
	}
}
