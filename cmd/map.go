package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Print the map score of every country",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		src, closeSrc, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer closeSrc()

		f, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		points, errs := travel.MapScores(f.Countries)
		for _, e := range errs {
			utils.Log.Warnf("Skipping country: %v", e)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(points)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CODE\tSCORE\tTOOLTIP\t")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", p.Abbreviation, p.Score, p.Tooltip)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)
	addSourceFlags(mapCmd)
	mapCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}
