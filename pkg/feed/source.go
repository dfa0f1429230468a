package feed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/storage"
	"github.com/opencountrieslist/opencountries/pkg/travel"
	"github.com/opencountrieslist/opencountries/pkg/whttp"
)

// DefaultCacheTTL is how long a downloaded feed is reused.
const DefaultCacheTTL = 30 * time.Minute

const cacheFileName = "data.json"

// Source yields the current feed snapshot.
type Source interface {
	Load(ctx context.Context) (travel.Feed, error)
}

func logRecordErrors(origin string, errs []error) {
	for _, err := range errs {
		utils.Log.Warnf("Skipping record in %s: %v", origin, err)
	}
}

// HTTPSource downloads the feed and keeps a copy on disk for TTL.
type HTTPSource struct {
	URL      string
	Client   *retryablehttp.Client // nil = default retrying client
	CacheDir string                // "" = no cache
	TTL      time.Duration         // <= 0 = DefaultCacheTTL
}

func (s *HTTPSource) cachePath() string {
	if s.CacheDir == "" {
		return ""
	}
	return filepath.Join(s.CacheDir, cacheFileName)
}

func (s *HTTPSource) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultCacheTTL
	}
	return s.TTL
}

// Load returns the cached feed while it is fresh, otherwise downloads it.
// If the download fails, a stale cache is used. The decision is taken once
// per call.
func (s *HTTPSource) Load(ctx context.Context) (travel.Feed, error) {
	path := s.cachePath()
	var cached []byte
	if path != "" {
		if st, err := os.Stat(path); err == nil {
			if b, err := os.ReadFile(path); err == nil {
				cached = b
				if time.Since(st.ModTime()) <= s.ttl() {
					utils.Log.Debugf("Using cached feed %s", path)
					return s.decode(cached)
				}
			}
		}
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: s.URL}, s.Client)
	if err == nil && (res.StatusCode < 200 || res.StatusCode > 299) {
		err = fmt.Errorf("unexpected status code %d", res.StatusCode)
	}
	if err != nil {
		if cached != nil {
			utils.Log.Warnf("Failed to fetch feed from %s, using stale cache: %v", s.URL, err)
			return s.decode(cached)
		}
		return travel.Feed{}, fmt.Errorf("failed to fetch feed from %s: %w", s.URL, err)
	}

	body := []byte(res.BodyString)
	f, err := s.decode(body)
	if err != nil {
		return travel.Feed{}, err
	}
	if path != "" {
		if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
			utils.Log.Warnf("Could not create feed cache dir: %v", err)
		} else if err := os.WriteFile(path, body, 0o644); err != nil {
			utils.Log.Warnf("Could not write feed cache: %v", err)
		}
	}
	return f, nil
}

func (s *HTTPSource) decode(b []byte) (travel.Feed, error) {
	f, errs, err := Decode(bytes.NewReader(b))
	if err != nil {
		return travel.Feed{}, err
	}
	logRecordErrors(s.URL, errs)
	return f, nil
}

// FileSource reads a local data.json. After Watch is started, Load serves
// the last successfully read snapshot.
type FileSource struct {
	Path string

	mu      sync.RWMutex
	current *travel.Feed
}

func (s *FileSource) read() (travel.Feed, error) {
	fh, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return travel.Feed{}, fmt.Errorf("%w: %s does not exist", ErrNoData, s.Path)
		}
		return travel.Feed{}, err
	}
	defer fh.Close()
	f, errs, err := Decode(fh)
	if err != nil {
		return travel.Feed{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	logRecordErrors(s.Path, errs)
	return f, nil
}

func (s *FileSource) Load(ctx context.Context) (travel.Feed, error) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil {
		return *cur, nil
	}
	return s.read()
}

// Watch keeps the snapshot in sync with the file until ctx is cancelled.
// A reload that fails keeps the previous snapshot.
func (s *FileSource) Watch(ctx context.Context) error {
	if f, err := s.read(); err == nil {
		s.set(f)
	} else {
		utils.Log.Warnf("Initial load of %s failed: %v", s.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so atomic saves that replace the file are seen.
	if err := watcher.Add(filepath.Dir(s.Path)); err != nil {
		return err
	}
	utils.Log.Debugf("Watching %s for changes", s.Path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.Path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			f, err := s.read()
			if err != nil {
				utils.Log.Errorf("Reload of %s failed, keeping previous feed: %v", s.Path, err)
				continue
			}
			utils.Log.Infof("Reloaded %s (%d countries)", s.Path, len(f.Countries))
			s.set(f)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			utils.Log.Errorf("Feed watcher error: %v", err)
		}
	}
}

func (s *FileSource) set(f travel.Feed) {
	s.mu.Lock()
	s.current = &f
	s.mu.Unlock()
}

// StoreSource builds the feed from the database.
type StoreSource struct {
	DB *storage.DB
}

func (s *StoreSource) Load(ctx context.Context) (travel.Feed, error) {
	f, err := s.DB.Snapshot(ctx)
	if err != nil {
		return travel.Feed{}, err
	}
	if len(f.Countries) == 0 {
		return travel.Feed{}, ErrNoData
	}
	return f, nil
}
