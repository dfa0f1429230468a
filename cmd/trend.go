package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencountrieslist/opencountries/pkg/travel"
)

func formatRatio(r travel.Ratio) string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", r.Value*100)
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print the daily share of closed countries and of countries requiring quarantine",
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
		series := travel.TrendSeries(f.Changes)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DATE\tNOT OPEN\tNO QUARANTINE\t")
		for _, p := range series {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", p.Date, formatRatio(p.ClosedRatio), formatRatio(p.QuarantineRatio))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(trendCmd)
	addSourceFlags(trendCmd)
	trendCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}
