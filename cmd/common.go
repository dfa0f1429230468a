package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/storage"
	"github.com/opencountrieslist/opencountries/pkg/whttp"
)

// openDB opens the database at dbPath, creating its directory if needed.
func openDB(dbPath string) (*storage.DB, error) {
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}
	utils.Log.Debugf("Using database %s", absPath)
	return storage.Open(absPath)
}

// openExistingDB is openDB for read-only commands: a missing file is an error.
func openExistingDB(dbPath string) (*storage.DB, error) {
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("database not found: %s", absPath)
	}
	return storage.Open(absPath)
}

func newHTTPClient(cmd *cobra.Command) (*retryablehttp.Client, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	return whttp.NewClient(whttp.ClientOptions{Proxy: proxy})
}

// openSource resolves --source: "db" reads the database, "url" the
// configured feed URL, an http(s) URL that feed, anything else a local file.
// The returned func releases the source.
func openSource(cmd *cobra.Command) (feed.Source, func(), error) {
	source, _ := cmd.Flags().GetString("source")
	dbPath, _ := cmd.Flags().GetString("dbpath")

	switch {
	case source == "" || source == "db":
		db, err := openExistingDB(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return &feed.StoreSource{DB: db}, func() { db.Close() }, nil

	case source == "url" || strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		url := source
		if source == "url" {
			url = viper.GetString("feed.url")
		}
		client, err := newHTTPClient(cmd)
		if err != nil {
			return nil, nil, err
		}
		return &feed.HTTPSource{
			URL:      url,
			Client:   client,
			CacheDir: viper.GetString("feed.cache_dir"),
			TTL:      viper.GetDuration("feed.cache_ttl"),
		}, func() {}, nil

	default:
		return &feed.FileSource{Path: source}, func() {}, nil
	}
}

func addSourceFlags(c *cobra.Command) {
	c.Flags().String("source", "db", `Feed source: "db", "url" (feed.url from config), an http(s) URL, or a data.json path`)
	c.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/opencountries/opencountries.sqlite)")
}

func writeOutput(path string, write func(f *os.File) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
