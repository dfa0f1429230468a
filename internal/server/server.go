package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
)

// PollFunc runs one poll cycle for the background poller.
type PollFunc func(ctx context.Context) (PollStatus, error)

// PollStatus holds the result of the last background poll.
type PollStatus struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Countries int           `json:"countries"`
	Changes   int           `json:"changes"`
	Errors    int           `json:"errors"`
}

type Config struct {
	Source   feed.Source
	Username string
	Password string
	Domain   string // used for sitemap.xml and robots.txt

	Poll         PollFunc      // optional
	PollInterval time.Duration // 0 disables the background poller
}

type Server struct {
	cfg Config

	statusMu sync.RWMutex
	status   *PollStatus
}

func New(cfg Config) *Server {
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	return &Server{cfg: cfg}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /data.json", s.basicAuth(s.handleFeed))
	mux.HandleFunc("GET /api/countries", s.basicAuth(s.handleCountries))
	mux.HandleFunc("GET /api/map", s.basicAuth(s.handleMap))
	mux.HandleFunc("GET /api/trend", s.basicAuth(s.handleTrend))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/status", s.basicAuth(s.handleStatus))

	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)

	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s.cfg.Poll != nil && s.cfg.PollInterval > 0 {
		go s.startBackgroundPoller(ctx)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s (domain: %s)", addr, s.cfg.Domain)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// startBackgroundPoller runs periodic poll cycles until ctx is done.
func (s *Server) startBackgroundPoller(ctx context.Context) {
	utils.Log.Infof("Starting background poller (interval: %s)", s.cfg.PollInterval)

	// Run immediately on startup
	s.runPollCycle(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPollCycle(ctx)
		}
	}
}

func (s *Server) runPollCycle(ctx context.Context) {
	utils.Log.Info("Starting poll cycle...")
	start := time.Now()

	st, err := s.cfg.Poll(ctx)
	st.StartedAt = start
	st.Duration = time.Since(start)
	st.Success = err == nil
	s.setStatus(st)

	if err != nil {
		utils.Log.Errorf("Poll cycle failed: %v", err)
		return
	}
	utils.Log.Infof("Poll cycle completed in %s (%d countries, %d changes)", st.Duration.Round(time.Second), st.Countries, st.Changes)
}

func (s *Server) setStatus(st PollStatus) {
	s.statusMu.Lock()
	s.status = &st
	s.statusMu.Unlock()
}

// Status returns a copy of the last poll status, or nil if none ran.
func (s *Server) Status() *PollStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if s.status == nil {
		return nil
	}
	cp := *s.status
	return &cp
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username == "" && s.cfg.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.Username || pass != s.cfg.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
