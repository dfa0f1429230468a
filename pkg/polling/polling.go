package polling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opencountrieslist/opencountries/pkg/scraper"
	"github.com/opencountrieslist/opencountries/pkg/storage"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds everything PollCountries needs for one cycle.
type Config struct {
	Source      scraper.CountrySource
	DB          *storage.DB
	Concurrency int    // defaults to 5 if <= 0
	Log         Logger // optional; nil = no logging

	// OnCountryDone is called per fetched country (from worker goroutines).
	// Nil = no callback.
	OnCountryDone func(rec travel.CountryRecord, err error)

	// Now overrides the clock used for the daily tally. Nil = time.Now.
	Now func() time.Time
}

// Result holds the outcome of one poll cycle.
type Result struct {
	RunID      string
	Listed     int
	Records    []travel.CountryRecord // sorted by abbreviation, then name
	Changes    []storage.Change
	IsFirstRun bool
	Errors     []error // non-fatal errors
}

// PollCountries lists the directory, fetches every country concurrently,
// upserts the batch and records today's tally. A country that fails to fetch
// is reported in Result.Errors and keeps its stored row. DB is required.
func PollCountries(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Source == nil || cfg.DB == nil {
		return nil, errors.New("polling: source and db are required")
	}
	src := cfg.Source
	db := cfg.DB

	result := &Result{RunID: uuid.NewString()}

	// Determine if this is the first run.
	count, err := db.CountryCount(ctx)
	if err != nil {
		log.Warnf("Could not get country count: %v", err)
	} else {
		result.IsFirstRun = count == 0
	}

	countries, err := src.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing countries from %s: %w", src.Name(), err)
	}
	result.Listed = len(countries)
	if result.IsFirstRun && len(countries) > 0 {
		log.Infof("First poll of %s, populating database...", src.Name())
	}

	records, failed, errs := fetchConcurrently(ctx, src, countries, concurrency, log, cfg.OnCountryDone)
	result.Records = records
	result.Errors = errs
	if err := ctx.Err(); err != nil {
		return result, err
	}

	changes, err := db.UpsertCountries(ctx, result.RunID, records, failed...)
	if err != nil {
		if errors.Is(err, storage.ErrAbortingWipe) {
			log.Errorf("%s returned 0 countries, but the database has %d. Aborting sync to prevent data loss.", src.Name(), count)
		}
		return result, err
	}
	result.Changes = changes

	if !result.IsFirstRun {
		if err := db.LogChanges(ctx, changes); err != nil {
			log.Warnf("Could not log changes: %v", err)
		}
	}

	// The tally covers the whole stored state, including countries whose
	// fetch failed this cycle.
	stored, err := db.ListCountries(ctx)
	if err != nil {
		log.Warnf("Could not load countries for the daily tally: %v", err)
		return result, nil
	}
	day := now().UTC().Format("2006-01-02")
	if err := db.RecordDailyCounts(ctx, day, travel.Tally(stored)); err != nil {
		log.Warnf("Could not record daily counts for %s: %v", day, err)
	}

	return result, nil
}

// fetchConcurrently fetches countries with at most concurrency requests in
// flight. It returns the fetched records, the names of the countries that
// failed and the errors.
func fetchConcurrently(
	ctx context.Context,
	src scraper.CountrySource,
	countries []scraper.Country,
	concurrency int,
	log Logger,
	onDone func(travel.CountryRecord, error),
) ([]travel.CountryRecord, []string, []error) {
	if len(countries) == 0 {
		return []travel.CountryRecord{}, nil, nil
	}

	var mu sync.Mutex
	records := make([]travel.CountryRecord, 0, len(countries))
	var failed []string
	var allErrors []error

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, c := range countries {
		c := c
		g.Go(func() error {
			rec, err := src.FetchCountry(ctx, c)
			if err == nil {
				err = rec.Validate()
			}
			mu.Lock()
			if err != nil {
				log.Warnf("Failed to fetch %s: %v", c.Name, err)
				failed = append(failed, c.Name)
				allErrors = append(allErrors, fmt.Errorf("%s: %w", c.Name, err))
			} else {
				log.Debugf("Fetched %s: classification %d", c.Name, rec.Classification)
				records = append(records, rec)
			}
			mu.Unlock()

			if onDone != nil {
				onDone(rec, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Abbreviation != records[j].Abbreviation {
			return records[i].Abbreviation < records[j].Abbreviation
		}
		return records[i].Name < records[j].Name
	})
	return records, failed, allErrors
}
