package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencountrieslist/opencountries/internal/server"
	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/polling"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the opencountrieslist.com API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		dbPath, _ := cmd.Flags().GetString("dbpath")
		pollInterval, _ := cmd.Flags().GetInt("poll-interval")
		listenAddr, _ := cmd.Flags().GetString("listen")
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			domain = viper.GetString("server.domain")
		}
		ctx := cmd.Context()

		cfg := server.Config{
			Username: viper.GetString("server.username"),
			Password: viper.GetString("server.password"),
			Domain:   domain,
		}

		switch source {
		case "db", "":
			// The server owns the database and keeps it fresh.
			db, err := openDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			cfg.Source = &feed.StoreSource{DB: db}

			if pollInterval > 0 {
				src, err := buildCountrySource(cmd, "")
				if err != nil {
					return err
				}
				cfg.PollInterval = time.Duration(pollInterval) * time.Hour
				cfg.Poll = func(ctx context.Context) (server.PollStatus, error) {
					lock, err := utils.NewDBLock(dbPath)
					if err != nil {
						return server.PollStatus{}, err
					}
					if err := lock.Lock(ctx); err != nil {
						return server.PollStatus{}, err
					}
					defer lock.Unlock()

					res, err := polling.PollCountries(ctx, polling.Config{Source: src, DB: db, Log: utils.Log})
					if res == nil {
						return server.PollStatus{}, err
					}
					return server.PollStatus{Countries: len(res.Records), Changes: len(res.Changes), Errors: len(res.Errors)}, err
				}
			}

		default:
			src, closeSrc, err := openSource(cmd)
			if err != nil {
				return err
			}
			defer closeSrc()
			cfg.Source = src

			// A local feed file is reloaded whenever it changes.
			if fs, ok := src.(*feed.FileSource); ok {
				go func() {
					if err := fs.Watch(ctx); err != nil {
						utils.Log.Errorf("Watching %s: %v", fs.Path, err)
					}
				}()
			}
		}

		err := server.New(cfg).Run(ctx, listenAddr)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSourceFlags(serveCmd)
	serveCmd.Flags().Int("poll-interval", 1, "Hours between polling cycles when serving from the database (0 to disable)")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("domain", "", "Domain name for sitemap/robots.txt (default: server.domain from config)")
	serveCmd.Flags().String("cache-dir", "", "Page cache directory for the background poller (default: scraper.cache_dir from config)")
}
