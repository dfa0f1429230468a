// Package static serves a fixed set of country records through the
// scraper.CountrySource interface. It is used to import an existing feed
// and as a deterministic source in tests.
package static

import (
	"context"
	"fmt"

	"github.com/opencountrieslist/opencountries/pkg/scraper"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

type Source struct {
	Records []travel.CountryRecord
	// Failures makes FetchCountry fail for the given country names.
	Failures map[string]error
}

func (s *Source) Name() string { return "static" }

func (s *Source) ListCountries(ctx context.Context) ([]scraper.Country, error) {
	out := make([]scraper.Country, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, scraper.Country{Abbreviation: r.Abbreviation, Name: r.Name, URL: r.URL})
	}
	return out, nil
}

func (s *Source) FetchCountry(ctx context.Context, c scraper.Country) (travel.CountryRecord, error) {
	if err := ctx.Err(); err != nil {
		return travel.CountryRecord{}, err
	}
	if err, ok := s.Failures[c.Name]; ok {
		return travel.CountryRecord{}, err
	}
	for _, r := range s.Records {
		if r.Name == c.Name {
			return r, nil
		}
	}
	return travel.CountryRecord{}, fmt.Errorf("unknown country %q", c.Name)
}
