package travel

import (
	"errors"
	"reflect"
	"testing"
)

func TestClassify_ClosedForcesNotApplicable(t *testing.T) {
	for _, q := range []Requirement{RequirementUnknown, Required, NotRequired} {
		for _, tr := range []Requirement{RequirementUnknown, Required, NotRequired} {
			d, err := Classify(CountryRecord{Abbreviation: "FR", Classification: Closed, QuarantineRequired: q, TestRequired: tr})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Quarantine != NotApplicable || d.Test != NotApplicable {
				t.Fatalf("q=%d t=%d: expected not-applicable, got quarantine=%d test=%d", q, tr, d.Quarantine, d.Test)
			}
			if d.QuarantineLabel != "" || d.TestLabel != "" {
				t.Fatalf("expected empty labels, got %q / %q", d.QuarantineLabel, d.TestLabel)
			}
			if d.QuarantineSortKey != -1 || d.TestSortKey != -1 {
				t.Fatalf("expected -1 sort keys, got %d / %d", d.QuarantineSortKey, d.TestSortKey)
			}
		}
	}
}

func TestClassify_UnknownForcesUnknown(t *testing.T) {
	d, err := Classify(CountryRecord{
		Abbreviation:       "MX",
		Classification:     Unknown,
		QuarantineRequired: Required,
		TestRequired:       NotRequired,
		LastChanged:        1610000000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Quarantine != RequirementUnknown || d.Test != RequirementUnknown {
		t.Fatalf("expected unknown sub-policies, got quarantine=%d test=%d", d.Quarantine, d.Test)
	}
	if d.LastChangedSortKey != 0 || d.LastChanged != 0 {
		t.Fatalf("expected last_changed forced to 0, got %d", d.LastChangedSortKey)
	}
}

func TestClassify_LabelsAndStyles(t *testing.T) {
	tests := []struct {
		c     Classification
		label string
		style Style
	}{
		{Unknown, "UNKNOWN", StyleUnknown},
		{SeeURL, "SEE URL", StyleMoreInfo},
		{Closed, "CLOSED", StyleNo},
		{MostlyClosed, "MOSTLY CLOSED", StyleRarely},
		{PartiallyOpen, "PARTIALLY OPEN", StyleSometimes},
		{Open, "OPEN", StyleYes},
	}
	for _, tt := range tests {
		d, err := Classify(CountryRecord{Classification: tt.c})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.OpennessLabel != tt.label || d.OpennessStyle != tt.style {
			t.Fatalf("classification %d: got %q/%q, want %q/%q", tt.c, d.OpennessLabel, d.OpennessStyle, tt.label, tt.style)
		}
		if d.OpennessSortKey != int(tt.c) {
			t.Fatalf("classification %d: sort key %d", tt.c, d.OpennessSortKey)
		}
	}
}

func TestClassify_RequirementStyleInversion(t *testing.T) {
	d, err := Classify(CountryRecord{Classification: Open, QuarantineRequired: Required, TestRequired: NotRequired})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.QuarantineLabel != "REQUIRED" || d.QuarantineStyle != StyleNo {
		t.Fatalf("required: got %q/%q", d.QuarantineLabel, d.QuarantineStyle)
	}
	if d.TestLabel != "NOT REQUIRED" || d.TestStyle != StyleYes {
		t.Fatalf("not required: got %q/%q", d.TestLabel, d.TestStyle)
	}
	if d.QuarantineSortKey != 1 || d.TestSortKey != 2 {
		t.Fatalf("sort keys: got %d/%d", d.QuarantineSortKey, d.TestSortKey)
	}
}

func TestClassify_TooltipGate(t *testing.T) {
	notes := []string{"Yes, with a negative test.", "Visitors must register."}
	tests := []struct {
		c    Classification
		want bool
	}{
		{Unknown, false},
		{SeeURL, false},
		{Closed, true},
		{MostlyClosed, true},
		{PartiallyOpen, true},
		{Open, true},
	}
	for _, tt := range tests {
		d, err := Classify(CountryRecord{Classification: tt.c, Preformatted: notes})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.HasTooltip != tt.want {
			t.Fatalf("classification %d: HasTooltip=%t, want %t", tt.c, d.HasTooltip, tt.want)
		}
		if tt.want {
			want := TooltipHeader + "\nYes, with a negative test.\nVisitors must register."
			if d.Tooltip != want {
				t.Fatalf("tooltip = %q, want %q", d.Tooltip, want)
			}
		}
	}

	d, _ := Classify(CountryRecord{Classification: Open})
	if d.HasTooltip {
		t.Fatalf("expected no tooltip without preformatted notes")
	}
}

func TestClassify_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		rec   CountryRecord
		field string
	}{
		{"classification high", CountryRecord{Classification: 6}, "classification"},
		{"classification negative", CountryRecord{Classification: -1}, "classification"},
		{"quarantine sentinel from feed", CountryRecord{Classification: Open, QuarantineRequired: NotApplicable}, "quarantine_required"},
		{"test high", CountryRecord{Classification: Open, TestRequired: 3}, "test_required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.rec)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	rec := CountryRecord{
		Abbreviation:       "IS",
		Classification:     PartiallyOpen,
		QuarantineRequired: Required,
		TestRequired:       Required,
		LastChanged:        1612345678,
		Preformatted:       []string{"Yes."},
	}
	a, _ := Classify(rec)
	b, _ := Classify(rec)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("classify is not deterministic: %#v vs %#v", a, b)
	}
	if rec.QuarantineRequired != Required {
		t.Fatalf("input record was mutated")
	}
}

func TestClassifyAll_PartialFailure(t *testing.T) {
	rows, errs := ClassifyAll([]CountryRecord{
		{Abbreviation: "CHINA", Name: "China", Classification: Closed},
		{Abbreviation: "XX", Name: "Broken", Classification: 9},
		{Abbreviation: "DE", Name: "Germany", Classification: MostlyClosed},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if rows[0].Abbreviation != "CN" {
		t.Fatalf("expected CHINA normalized to CN, got %q", rows[0].Abbreviation)
	}
}

func TestSortRows(t *testing.T) {
	rows, _ := ClassifyAll([]CountryRecord{
		{Name: "b", URL: "https://b", Classification: Open, QuarantineRequired: Required},
		{Name: "c", URL: "https://c", Classification: Closed},
		{Name: "a", URL: "https://a", Classification: Open, QuarantineRequired: NotRequired},
		{Name: "d", URL: "https://d", Classification: Open, QuarantineRequired: NotRequired},
	})
	SortRows(rows)
	var got []string
	for _, r := range rows {
		got = append(got, r.Name)
	}
	want := []string{"a", "d", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeAbbreviation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CHINA", "CN"},
		{"china", "CN"},
		{"mx", "MX"},
		{"BB", "BB"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAbbreviation(tt.in); got != tt.want {
			t.Fatalf("NormalizeAbbreviation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
