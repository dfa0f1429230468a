package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencountrieslist/opencountries/internal/server"
	"github.com/opencountrieslist/opencountries/internal/utils"
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Generate sitemap.xml",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			domain = viper.GetString("server.domain")
		}

		utils.Log.Infof("Generating %s...", output)
		return writeOutput(output, func(w *os.File) error {
			return server.WriteSitemap(w, domain, time.Now())
		})
	},
}

func init() {
	rootCmd.AddCommand(sitemapCmd)
	sitemapCmd.Flags().StringP("output", "o", "web/sitemap.xml", "Output file (- for stdout)")
	sitemapCmd.Flags().String("domain", "", "Site domain (default: server.domain from config)")
}
