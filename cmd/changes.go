package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vznh/conviction/pkg/storage"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent progress events from the journal (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		limit, _ := cmd.Flags().GetInt("limit")
		if dbPath == "" {
			dbPath = viper.GetString("journal.path")
		}
		if dbPath == "" {
			dbPath = "conviction.sqlite"
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("journal not found: %s", dbPath)
		}
		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		events, err := db.ListRecentEvents(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, e := range events {
			ts := e.OccurredAt.Format("2006-01-02 15:04:05")
			if e.Day > 0 {
				fmt.Printf("%s  %-9s  %s  day %d\n", ts, e.Kind, e.Participant, e.Day)
			} else {
				fmt.Printf("%s  %-9s  %s\n", ts, e.Kind, e.Participant)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().String("dbpath", "", "Path to the journal sqlite file (default: journal.path from config)")
	changesCmd.Flags().Int("limit", 50, "Number of recent events to show")
}
