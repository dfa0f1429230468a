package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/opencountrieslist/opencountries/pkg/travel"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setClock(db *DB, ts time.Time) {
	db.now = func() time.Time { return ts }
}

func rec(abbr string, c travel.Classification, q, tr travel.Requirement) travel.CountryRecord {
	return travel.CountryRecord{
		Abbreviation:       abbr,
		Name:               "Country " + abbr,
		URL:                "https://" + abbr + ".usembassy.gov/",
		Classification:     c,
		QuarantineRequired: q,
		TestRequired:       tr,
	}
}

func countByType(changes []Change) map[string]int {
	out := map[string]int{}
	for _, c := range changes {
		out[c.ChangeType]++
	}
	return out
}

func TestUpsertCountries_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2020, 8, 1, 12, 0, 0, 0, time.UTC)
	setClock(db, t0)

	first := []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
		rec("IS", travel.PartiallyOpen, travel.Required, travel.Required),
		rec("JP", travel.Closed, travel.RequirementUnknown, travel.RequirementUnknown),
	}
	first[1].Preformatted = []string{"Yes, with a negative test."}

	changes, err := db.UpsertCountries(ctx, "run-1", first)
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if got := countByType(changes); got[ChangeAdded] != 3 || len(changes) != 3 {
		t.Fatalf("expected 3 added, got %v", got)
	}

	// Same data again: nothing changes.
	changes, err = db.UpsertCountries(ctx, "run-2", first)
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %#v", changes)
	}

	// MX closes, JP drops out of the directory.
	t1 := t0.Add(24 * time.Hour)
	setClock(db, t1)
	second := []travel.CountryRecord{
		rec("MX", travel.Closed, travel.NotRequired, travel.NotRequired),
		first[1],
	}
	changes, err = db.UpsertCountries(ctx, "run-3", second)
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	got := countByType(changes)
	if got[ChangeUpdated] != 1 || got[ChangeRemoved] != 1 || len(changes) != 2 {
		t.Fatalf("expected 1 updated and 1 removed, got %#v", changes)
	}
	for _, c := range changes {
		switch c.ChangeType {
		case ChangeUpdated:
			if c.Abbreviation != "MX" || c.Field != FieldClassification || c.OldValue != int(travel.Open) || c.NewValue != int(travel.Closed) {
				t.Fatalf("unexpected update %#v", c)
			}
		case ChangeRemoved:
			if c.Abbreviation != "JP" || c.RunID != "run-3" {
				t.Fatalf("unexpected removal %#v", c)
			}
		}
	}

	stored, err := db.ListCountries(ctx)
	if err != nil {
		t.Fatalf("ListCountries: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored countries, got %d", len(stored))
	}
	// Ordered by abbreviation: IS, MX.
	if stored[0].Abbreviation != "IS" || stored[1].Abbreviation != "MX" {
		t.Fatalf("unexpected order %q, %q", stored[0].Abbreviation, stored[1].Abbreviation)
	}
	if stored[0].LastChanged != 0 {
		t.Fatalf("IS never changed, got last_changed %d", stored[0].LastChanged)
	}
	if stored[1].LastChanged != t1.Unix() {
		t.Fatalf("MX last_changed = %d, want %d", stored[1].LastChanged, t1.Unix())
	}
	if !reflect.DeepEqual(stored[0].Preformatted, first[1].Preformatted) {
		t.Fatalf("notes not round-tripped: %v", stored[0].Preformatted)
	}
}

func TestUpsertCountries_KeepProtectsUnfetched(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertCountries(ctx, "run-1", []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
		rec("IS", travel.Open, travel.NotRequired, travel.NotRequired),
	}); err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}

	changes, err := db.UpsertCountries(ctx, "run-2", []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
	}, "IS")
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected IS to be kept, got %#v", changes)
	}
	n, err := db.CountryCount(ctx)
	if err != nil {
		t.Fatalf("CountryCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 countries, got %d", n)
	}
}

func TestUpsertCountries_AbortsWipe(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var many []travel.CountryRecord
	for i := 0; i < 11; i++ {
		many = append(many, rec(fmt.Sprintf("C%d", i), travel.Open, travel.NotRequired, travel.NotRequired))
	}
	if _, err := db.UpsertCountries(ctx, "run-1", many); err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}

	_, err := db.UpsertCountries(ctx, "run-2", nil)
	if !errors.Is(err, ErrAbortingWipe) {
		t.Fatalf("expected ErrAbortingWipe, got %v", err)
	}
	n, _ := db.CountryCount(ctx)
	if n != 11 {
		t.Fatalf("expected rows untouched, got %d", n)
	}
}

func TestUpsertCountries_RejectsInvalid(t *testing.T) {
	db := openTestDB(t)
	bad := rec("XX", travel.Classification(9), travel.Required, travel.Required)
	_, err := db.UpsertCountries(context.Background(), "run-1", []travel.CountryRecord{bad})
	var verr *travel.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLogAndListChanges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

	in := []Change{
		{OccurredAt: base, RunID: "a", Abbreviation: "MX", Name: "Mexico", Field: FieldCountry, NewValue: 5, ChangeType: ChangeAdded},
		{OccurredAt: base.Add(time.Hour), RunID: "b", Abbreviation: "MX", Name: "Mexico", Field: FieldClassification, OldValue: 5, NewValue: 2, ChangeType: ChangeUpdated},
	}
	if err := db.LogChanges(ctx, in); err != nil {
		t.Fatalf("LogChanges: %v", err)
	}

	out, err := db.ListRecentChanges(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecentChanges: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 change, got %d", len(out))
	}
	if !reflect.DeepEqual(out[0], in[1]) {
		t.Fatalf("expected newest change %#v, got %#v", in[1], out[0])
	}
}

func TestDailyCountsAndSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	setClock(db, time.Unix(1600000000, 0))

	records := []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
		rec("JP", travel.Closed, travel.RequirementUnknown, travel.RequirementUnknown),
	}
	if _, err := db.UpsertCountries(ctx, "run-1", records); err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}

	day := travel.Tally(records)
	if err := db.RecordDailyCounts(ctx, "2020-09-13", day); err != nil {
		t.Fatalf("RecordDailyCounts: %v", err)
	}
	// Recording the same day again replaces it.
	if err := db.RecordDailyCounts(ctx, "2020-09-13", day); err != nil {
		t.Fatalf("RecordDailyCounts: %v", err)
	}
	if err := db.RecordDailyCounts(ctx, "13/09/2020", day); err == nil {
		t.Fatalf("expected error for malformed day")
	}

	feed, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if feed.Time != 1600000000 {
		t.Fatalf("unexpected feed time %d", feed.Time)
	}
	if len(feed.Countries) != 2 {
		t.Fatalf("expected 2 countries, got %d", len(feed.Countries))
	}
	got, ok := feed.Changes["2020-09-13"]
	if !ok {
		t.Fatalf("missing day in changes: %v", feed.Changes)
	}
	if !reflect.DeepEqual(got, day) {
		t.Fatalf("daily counts mismatch: want %#v, got %#v", day, got)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := []ClassificationStats{{Classification: travel.Closed, Count: 1}, {Classification: travel.Open, Count: 1}}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("stats: want %#v, got %#v", want, stats)
	}
}

func TestUpsertCountries_SharedEmbassy(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	shared := func(name string, c travel.Classification) travel.CountryRecord {
		return travel.CountryRecord{
			Abbreviation:   "BB",
			Name:           name,
			URL:            "https://bb.usembassy.gov/covid-19-information/",
			Classification: c,
		}
	}
	records := []travel.CountryRecord{
		shared("Barbados", travel.Open),
		shared("Grenada", travel.Closed),
		shared("Dominica", travel.MostlyClosed),
	}

	changes, err := db.UpsertCountries(ctx, "run-1", records)
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if got := countByType(changes); got[ChangeAdded] != 3 || len(changes) != 3 {
		t.Fatalf("expected 3 added, got %#v", changes)
	}

	// The same listing again is not a change.
	changes, err = db.UpsertCountries(ctx, "run-2", records)
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %#v", changes)
	}

	stored, err := db.ListCountries(ctx)
	if err != nil {
		t.Fatalf("ListCountries: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored countries, got %d", len(stored))
	}
	want := map[string]travel.Classification{"Barbados": travel.Open, "Dominica": travel.MostlyClosed, "Grenada": travel.Closed}
	for i, r := range stored {
		if r.Classification != want[r.Name] {
			t.Fatalf("%s: classification %d, want %d", r.Name, r.Classification, want[r.Name])
		}
		if i > 0 && stored[i-1].Name > r.Name {
			t.Fatalf("expected name order within an abbreviation, got %q before %q", stored[i-1].Name, r.Name)
		}
	}

	// Grenada fails to fetch and is kept, Dominica leaves the directory.
	changes, err = db.UpsertCountries(ctx, "run-3", records[:1], "Grenada")
	if err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != ChangeRemoved || changes[0].Name != "Dominica" || changes[0].Abbreviation != "BB" {
		t.Fatalf("expected only Dominica removed, got %#v", changes)
	}
}

func TestUpsertCountries_DuplicateNameInRun(t *testing.T) {
	db := openTestDB(t)
	r := rec("MX", travel.Open, travel.NotRequired, travel.NotRequired)
	if _, err := db.UpsertCountries(context.Background(), "run-1", []travel.CountryRecord{r, r}); err == nil {
		t.Fatalf("expected error for a country listed twice")
	}
	n, _ := db.CountryCount(context.Background())
	if n != 0 {
		t.Fatalf("expected the run to be rolled back, got %d rows", n)
	}
}

func TestSnapshot_TimeIsLastPoll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	empty, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if empty.Time != 0 {
		t.Fatalf("expected time 0 for an empty database, got %d", empty.Time)
	}

	polled := time.Date(2020, 9, 1, 10, 0, 0, 0, time.UTC)
	setClock(db, polled)
	if _, err := db.UpsertCountries(ctx, "run-1", []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
	}); err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}

	// Serving later must not move the feed time.
	setClock(db, polled.Add(72*time.Hour))
	for i := 0; i < 2; i++ {
		f, err := db.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if f.Time != polled.Unix() {
			t.Fatalf("feed time = %d, want %d", f.Time, polled.Unix())
		}
	}

	// A later poll moves it forward.
	next := polled.Add(time.Hour)
	setClock(db, next)
	if _, err := db.UpsertCountries(ctx, "run-2", []travel.CountryRecord{
		rec("MX", travel.Open, travel.NotRequired, travel.NotRequired),
	}); err != nil {
		t.Fatalf("UpsertCountries: %v", err)
	}
	ts, err := db.LastUpdated(ctx)
	if err != nil {
		t.Fatalf("LastUpdated: %v", err)
	}
	if ts != next.Unix() {
		t.Fatalf("LastUpdated = %d, want %d", ts, next.Unix())
	}
}
