package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencountrieslist/opencountries/internal/server"
	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/feed"
	"github.com/opencountrieslist/opencountries/pkg/scraper"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opencountries",
	Short: "Tracks which countries are open to U.S. citizens.",
	Long: `opencountries scrapes the State Department COVID-19 country pages, keeps track of
entry restriction changes, and serves the countries table, map and trend data.

Visit https://opencountrieslist.com for the hourly-updated list!`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opencountries.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env file in the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error loading .env file: %s\n", err)
	}

	home, err := homedir.Dir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".opencountries")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OPENCOUNTRIES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults are set before writing so a fresh config file lists every key.
	cacheRoot := filepath.Join(home, ".cache", "opencountries")
	viper.SetDefault("scraper.directory_url", scraper.DIRECTORY_URL)
	viper.SetDefault("scraper.cache_dir", filepath.Join(cacheRoot, "pages"))
	viper.SetDefault("feed.url", "https://"+server.DefaultDomain+"/data.json")
	viper.SetDefault("feed.cache_dir", cacheRoot)
	viper.SetDefault("feed.cache_ttl", feed.DefaultCacheTTL.String())
	viper.SetDefault("server.domain", server.DefaultDomain)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			configPath := filepath.Join(home, ".opencountries.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
