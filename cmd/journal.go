package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dutysched/core/journal"
)

var (
	journalDuty  string
	journalSince time.Duration
	journalLimit int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the duty transition journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := journal.NewLogStore(cfg.Journal.Store)
		if err != nil {
			return err
		}
		defer store.Close()
		q := journal.Query{DutyID: journalDuty, Limit: journalLimit}
		if journalSince > 0 {
			q.Start = time.Now().UTC().Add(-journalSince)
		}
		recs, err := store.Query(cmd.Context(), q)
		if err != nil {
			return err
		}
		if recs == nil {
			recs = []journal.Record{}
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalDuty, "duty", "", "only this duty")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "only transitions newer than this")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "most recent records to show, 0 for all")
	rootCmd.AddCommand(journalCmd)
}

