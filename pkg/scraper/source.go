package scraper

import (
	"context"

	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// Country is one entry of the directory page.
type Country struct {
	Abbreviation string
	Name         string
	URL          string
	Domain       string
}

// CountrySource abstracts where country pages come from, so polling can run
// against the live site or a fixed set of pages.
type CountrySource interface {
	Name() string
	ListCountries(ctx context.Context) ([]Country, error)
	// FetchCountry returns the record for one country. A page without any
	// recognizable answer is not an error; it yields an Unknown record.
	FetchCountry(ctx context.Context, c Country) (travel.CountryRecord, error)
}
