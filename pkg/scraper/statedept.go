package scraper

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/travel"
	"github.com/opencountrieslist/opencountries/pkg/whttp"
)

const (
	DIRECTORY_URL      = "https://travel.state.gov/content/travel/en/traveladvisories/COVID-19-Country-Specific-Information.html"
	directoryCacheKey  = "directory"
	countryCachePrefix = "country_"
)

// Options configures a Scraper.
type Options struct {
	DirectoryURL string
	Client       *retryablehttp.Client // nil = default retrying client
	Cache        *PageCache            // nil = no caching
}

// Scraper reads the State Department directory and the embassy page of each
// listed country.
type Scraper struct {
	directoryURL string
	client       *retryablehttp.Client
	cache        *PageCache
}

func New(opts Options) (*Scraper, error) {
	s := &Scraper{
		directoryURL: opts.DirectoryURL,
		client:       opts.Client,
		cache:        opts.Cache,
	}
	if s.directoryURL == "" {
		s.directoryURL = DIRECTORY_URL
	}
	if s.client == nil {
		c, err := whttp.NewClient(whttp.ClientOptions{})
		if err != nil {
			return nil, err
		}
		s.client = c
	}
	return s, nil
}

func (s *Scraper) Name() string { return "travel.state.gov" }

func (s *Scraper) ListCountries(ctx context.Context) ([]Country, error) {
	body, err := s.fetch(ctx, s.directoryURL, directoryCacheKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch directory: %w", err)
	}
	return ParseDirectory(body)
}

func (s *Scraper) FetchCountry(ctx context.Context, c Country) (travel.CountryRecord, error) {
	body, err := s.fetch(ctx, c.URL, countryCachePrefix+c.Name)
	if err != nil {
		return travel.CountryRecord{}, fmt.Errorf("failed to pull info for %q: %w", c.Name, err)
	}
	return ParseCountryPage(body, c), nil
}

func (s *Scraper) fetch(ctx context.Context, url, cacheKey string) (string, error) {
	if body, ok := s.cache.Get(cacheKey); ok {
		utils.Log.Debugf("Using cached page for %s", url)
		return body, nil
	}

	utils.Log.Debugf("Page %s has expired, pulling new data...", url)
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     url,
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "text/html,application/xhtml+xml"}},
	}, s.client)
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d for %s", res.StatusCode, url)
	}
	if res.HTTPTitle != "" {
		utils.Log.Debugf("Fetched %s (%s)", url, res.HTTPTitle)
	}

	if err := s.cache.Put(cacheKey, res.BodyString); err != nil {
		utils.Log.Warnf("Could not cache %s: %v", url, err)
	}
	return res.BodyString, nil
}
