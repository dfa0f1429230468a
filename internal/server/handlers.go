package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// CountriesResponse is the body of /api/countries.
type CountriesResponse struct {
	Time   int64        `json:"time"`
	Rows   []travel.Row `json:"rows"`
	Errors []string     `json:"errors"`
}

// MapResponse is the body of /api/map.
type MapResponse struct {
	Points []travel.MapPoint `json:"points"`
	Errors []string          `json:"errors"`
}

// StatsResponse is the body of /api/stats.
type StatsResponse struct {
	Time      int64            `json:"time"`
	Countries int              `json:"countries"`
	Today     travel.DayCounts `json:"today"`
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Warnf("Could not write response: %v", err)
	}
}

// loadFeed writes the error response itself and returns false on failure.
func (s *Server) loadFeed(w http.ResponseWriter, r *http.Request) (travel.Feed, bool) {
	f, err := s.cfg.Source.Load(r.Context())
	if err != nil {
		if errors.Is(err, feed.ErrNoData) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return travel.Feed{}, false
		}
		utils.Log.Errorf("Loading feed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return travel.Feed{}, false
	}
	return f, true
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFeed(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := feed.Encode(w, f); err != nil {
		utils.Log.Warnf("Could not write feed: %v", err)
	}
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFeed(w, r)
	if !ok {
		return
	}
	rows, errs := travel.ClassifyAll(f.Countries)
	travel.SortRows(rows)
	writeJSON(w, CountriesResponse{Time: f.Time, Rows: rows, Errors: errorStrings(errs)})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFeed(w, r)
	if !ok {
		return
	}
	points, errs := travel.MapScores(f.Countries)
	writeJSON(w, MapResponse{Points: points, Errors: errorStrings(errs)})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFeed(w, r)
	if !ok {
		return
	}
	writeJSON(w, travel.TrendSeries(f.Changes))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFeed(w, r)
	if !ok {
		return
	}
	writeJSON(w, StatsResponse{Time: f.Time, Countries: len(f.Countries), Today: travel.Tally(f.Countries)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Status()
	if st == nil {
		writeJSON(w, map[string]interface{}{"polled": false})
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintf(w, "Sitemap: https://%s/sitemap.xml\n", s.cfg.Domain)
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	lastmod := time.Now()
	if f, err := s.cfg.Source.Load(r.Context()); err == nil && f.Time > 0 {
		lastmod = time.Unix(f.Time, 0)
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if err := WriteSitemap(w, s.cfg.Domain, lastmod); err != nil {
		utils.Log.Warnf("Could not write sitemap: %v", err)
	}
}
