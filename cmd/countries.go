package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/opencountrieslist/opencountries/internal/utils"
	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// countryCSV is one row of `countries -o csv`.
type countryCSV struct {
	Code        string `csv:"code"`
	Name        string `csv:"name"`
	Openness    string `csv:"openness"`
	Quarantine  string `csv:"quarantine"`
	Test        string `csv:"test"`
	LastChanged string `csv:"last_changed,omitempty"`
	URL         string `csv:"url"`
	Notes       string `csv:"notes,omitempty"`
}

func formatLastChanged(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Print the countries table",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")

		src, closeSrc, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer closeSrc()

		f, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		rows, errs := travel.ClassifyAll(f.Countries)
		for _, e := range errs {
			utils.Log.Warnf("Skipping country: %v", e)
		}
		travel.SortRows(rows)

		return printRows(os.Stdout, rows, format)
	},
}

func printRows(out io.Writer, rows []travel.Row, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case "csv":
		records := make([]countryCSV, 0, len(rows))
		for _, r := range rows {
			records = append(records, countryCSV{
				Code:        r.Abbreviation,
				Name:        r.Name,
				Openness:    r.OpennessLabel,
				Quarantine:  r.QuarantineLabel,
				Test:        r.TestLabel,
				LastChanged: formatLastChanged(r.LastChanged),
				URL:         r.URL,
				Notes:       strings.ReplaceAll(r.Tooltip, "\n", " "),
			})
		}
		b, err := csvutil.Marshal(records)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err

	case "table", "":
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CODE\tCOUNTRY\tOPENNESS\tQUARANTINE\tTEST\tLAST CHANGED\t")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", r.Abbreviation, r.Name, r.OpennessLabel, r.QuarantineLabel, r.TestLabel, formatLastChanged(r.LastChanged))
		}
		return w.Flush()
	}
	return fmt.Errorf("unknown output format %q (table, csv, json)", format)
}

func init() {
	rootCmd.AddCommand(countriesCmd)
	addSourceFlags(countriesCmd)
	countriesCmd.Flags().StringP("output", "o", "table", "Output format: table, csv, json")
}
