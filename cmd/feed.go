package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opencountrieslist/opencountries/pkg/feed"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Export the data.json feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		src, closeSrc, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer closeSrc()

		f, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		return writeOutput(output, func(w *os.File) error { return feed.Encode(w, f) })
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	addSourceFlags(feedCmd)
	feedCmd.Flags().StringP("output", "o", "-", "Output file (- for stdout)")
}
