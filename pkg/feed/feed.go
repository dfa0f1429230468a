// Package feed reads and writes the data.json document and provides the
// sources the server and the CLI load it from.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/opencountrieslist/opencountries/pkg/travel"
	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed is returned when the document is not a feed at all.
	ErrMalformed = errors.New("malformed feed")
	// ErrNoData is returned by a source that has nothing to serve yet.
	ErrNoData = errors.New("no feed data available")
)

// Decode parses a feed leniently. A record that cannot be read is skipped
// and reported in the returned slice; the error return is reserved for a
// document that is not a feed. Out of range enum values are kept as is so
// that travel.ClassifyAll can report them.
func Decode(r io.Reader) (travel.Feed, []error, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return travel.Feed{}, nil, err
	}
	if !gjson.ValidBytes(body) {
		return travel.Feed{}, nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return travel.Feed{}, nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	countries := root.Get("countries")
	if !countries.IsArray() {
		return travel.Feed{}, nil, fmt.Errorf("%w: countries is not an array", ErrMalformed)
	}

	f := travel.Feed{
		Time:      root.Get("time").Int(),
		Countries: make([]travel.CountryRecord, 0, len(countries.Array())),
		Changes:   make(map[string]travel.DayCounts),
	}

	var recordErrs []error
	for i, c := range countries.Array() {
		rec, err := decodeRecord(c)
		if err != nil {
			recordErrs = append(recordErrs, fmt.Errorf("countries[%d]: %w", i, err))
			continue
		}
		f.Countries = append(f.Countries, rec)
	}

	root.Get("changes").ForEach(func(day, v gjson.Result) bool {
		if !v.IsObject() {
			recordErrs = append(recordErrs, fmt.Errorf("changes[%s]: not an object", day.String()))
			return true
		}
		dc := travel.DayCounts{
			Classification:     make(map[travel.Classification]int),
			QuarantineRequired: make(map[travel.Requirement]int),
		}
		v.Get("classification").ForEach(func(k, n gjson.Result) bool {
			if key, err := strconv.Atoi(k.String()); err == nil {
				dc.Classification[travel.Classification(key)] = int(n.Int())
			}
			return true
		})
		v.Get("quarantine_required").ForEach(func(k, n gjson.Result) bool {
			if key, err := strconv.Atoi(k.String()); err == nil {
				dc.QuarantineRequired[travel.Requirement(key)] = int(n.Int())
			}
			return true
		})
		f.Changes[day.String()] = dc
		return true
	})

	return f, recordErrs, nil
}

func decodeRecord(c gjson.Result) (travel.CountryRecord, error) {
	if !c.IsObject() {
		return travel.CountryRecord{}, errors.New("record is not an object")
	}
	rec := travel.CountryRecord{
		Abbreviation: c.Get("abbreviation").String(),
		Name:         c.Get("name").String(),
		URL:          c.Get("url").String(),
		LastChanged:  c.Get("last_changed").Int(),
	}

	ints := make(map[string]int, 3)
	for _, field := range []string{"classification", "quarantine_required", "test_required"} {
		v := c.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type != gjson.Number {
			return travel.CountryRecord{}, fmt.Errorf("%s: %s is not a number", rec.Abbreviation, field)
		}
		if v.Num != math.Trunc(v.Num) {
			return travel.CountryRecord{}, fmt.Errorf("%s: %s is not an integer: %s", rec.Abbreviation, field, v.Raw)
		}
		ints[field] = int(v.Int())
	}
	rec.Classification = travel.Classification(ints["classification"])
	rec.QuarantineRequired = travel.Requirement(ints["quarantine_required"])
	rec.TestRequired = travel.Requirement(ints["test_required"])

	for _, n := range c.Get("preformatted").Array() {
		rec.Preformatted = append(rec.Preformatted, n.String())
	}
	return rec, nil
}

// Encode writes f as indented JSON.
func Encode(w io.Writer, f travel.Feed) error {
	if f.Countries == nil {
		f.Countries = []travel.CountryRecord{}
	}
	if f.Changes == nil {
		f.Changes = map[string]travel.DayCounts{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}
