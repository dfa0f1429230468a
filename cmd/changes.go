package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent policy changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openExistingDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		changes, err := db.ListRecentChanges(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %-6s  %-20s  %-19s  %s -> %s\n", ts, c.ChangeType, c.Abbreviation, c.Name, c.Field, formatValue(c.Field, c.OldValue), formatValue(c.Field, c.NewValue))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/opencountries/opencountries.sqlite)")
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
}
