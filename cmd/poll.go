package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/polling"
	"github.com/opencountrieslist/opencountries/pkg/scraper"
	"github.com/opencountrieslist/opencountries/pkg/scraper/static"
	"github.com/opencountrieslist/opencountries/pkg/storage"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// pollCmd implements: opencountries poll
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Scrape every country page and record changes in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'opencountries poll --help'", args[0])
		}

		dbPath, _ := cmd.Flags().GetString("dbpath")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		output, _ := cmd.Flags().GetString("output")
		fromFeed, _ := cmd.Flags().GetString("from-feed")

		src, err := buildCountrySource(cmd, fromFeed)
		if err != nil {
			return err
		}

		lock, err := utils.NewDBLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(cmd.Context()); err != nil {
			return err
		}
		defer lock.Unlock()

		db, err := openDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		res, err := polling.PollCountries(ctx, polling.Config{
			Source:      src,
			DB:          db,
			Concurrency: concurrency,
			Log:         utils.Log,
			OnCountryDone: func(rec travel.CountryRecord, err error) {
				if err == nil {
					utils.Log.Debugf("%s: %s", rec.Name, rec.Classification)
				}
			},
		})
		if err != nil {
			return err
		}

		if res.IsFirstRun {
			fmt.Printf("First poll, populated database with %d countries\n", len(res.Records))
		} else {
			printChanges(res.Changes)
		}
		if len(res.Errors) > 0 {
			utils.Log.Warnf("%d of %d countries could not be fetched", len(res.Errors), res.Listed)
		}

		if output != "" {
			f, err := db.Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := writeOutput(output, func(w *os.File) error { return feed.Encode(w, f) }); err != nil {
				return fmt.Errorf("writing feed: %w", err)
			}
			utils.Log.Infof("Wrote feed to %s", output)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/opencountries/opencountries.sqlite)")
	pollCmd.Flags().Int("concurrency", 5, "Number of concurrent country page fetches")
	pollCmd.Flags().String("cache-dir", "", "Page cache directory (default: scraper.cache_dir from config)")
	pollCmd.Flags().StringP("output", "o", "", "Also write the resulting data.json to this path")
	pollCmd.Flags().String("from-feed", "", "Import countries from an existing data.json instead of scraping")
}

func buildCountrySource(cmd *cobra.Command, fromFeed string) (scraper.CountrySource, error) {
	if fromFeed != "" {
		fh, err := os.Open(fromFeed)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		f, errs, err := feed.Decode(fh)
		if err != nil {
			return nil, err
		}
		for _, e := range errs {
			utils.Log.Warnf("Skipping record in %s: %v", fromFeed, e)
		}
		return &static.Source{Records: f.Countries}, nil
	}

	client, err := newHTTPClient(cmd)
	if err != nil {
		return nil, err
	}
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	if cacheDir == "" {
		cacheDir = viper.GetString("scraper.cache_dir")
	}
	return scraper.New(scraper.Options{
		DirectoryURL: viper.GetString("scraper.directory_url"),
		Client:       client,
		Cache:        &scraper.PageCache{Dir: cacheDir, Expiry: scraper.DefaultPageExpiry},
	})
}

func printChanges(changes []storage.Change) {
	for _, c := range changes {
		switch c.ChangeType {
		case storage.ChangeAdded:
			fmt.Printf("[+] %s (%s): %s\n", c.Name, c.Abbreviation, travel.Classification(c.NewValue))
		case storage.ChangeRemoved:
			fmt.Printf("[-] %s (%s) removed from the directory\n", c.Name, c.Abbreviation)
		case storage.ChangeUpdated:
			fmt.Printf("[~] %s (%s): %s %s -> %s\n", c.Name, c.Abbreviation, c.Field, formatValue(c.Field, c.OldValue), formatValue(c.Field, c.NewValue))
		}
	}
}

func formatValue(field string, v int) string {
	if field == storage.FieldClassification || field == storage.FieldCountry {
		return travel.Classification(v).Label()
	}
	return travel.Requirement(v).Label()
}
