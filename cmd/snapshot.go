package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dutysched/core/scheduler"
	"github.com/kilianp07/dutysched/pkg/export"
)

var (
	planDate   string
	planFormat string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print every duty and resource as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, closeStore, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()
		snap, err := eng.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Export the vehicle plan of a day",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "day to plan (YYYY-MM-DD), today when empty")
	planCmd.Flags().StringVar(&planFormat, "format", "csv", "output format: csv or json")
	rootCmd.AddCommand(snapshotCmd, planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC()
	if planDate != "" {
		d, err := time.Parse(time.DateOnly, planDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		date = d
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, closeStore, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	snap, err := eng.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	entries, err := scheduler.GeneratePlan(snap.Duties, date)
	if err != nil {
		return err
	}
	switch planFormat {
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), entries)
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), entries)
	default:
		return fmt.Errorf("unsupported format: %s", planFormat)
	}
}
