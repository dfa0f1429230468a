package scraper

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultPageExpiry is how long a fetched page is reused before the site is
// hit again.
const DefaultPageExpiry = 24 * time.Hour

var cacheKeyRe = regexp.MustCompile(`[^a-z0-9_]+`)

// PageCache keeps raw pages on disk so repeated polls do not hammer the
// embassy sites.
type PageCache struct {
	Dir    string
	Expiry time.Duration
}

func (c *PageCache) path(key string) string {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
	return filepath.Join(c.Dir, cacheKeyRe.ReplaceAllString(key, "")+".html")
}

// Get returns a cached page that has not expired.
func (c *PageCache) Get(key string) (string, bool) {
	if c == nil || c.Dir == "" {
		return "", false
	}
	expiry := c.Expiry
	if expiry <= 0 {
		expiry = DefaultPageExpiry
	}
	p := c.path(key)
	st, err := os.Stat(p)
	if err != nil || time.Since(st.ModTime()) > expiry {
		return "", false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Put stores a page.
func (c *PageCache) Put(key, body string) error {
	if c == nil || c.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(key), []byte(body), 0o644)
}
