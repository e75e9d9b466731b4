package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dutysched/pkg/fleetfile"
)

var manifestPath string

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Register drivers, vehicles, routes and duties from a manifest",
	Long: "Loads a YAML or JSON fleet manifest and applies it to the configured storage. " +
		"Use it with the sqlite backend; the memory backend forgets everything on exit.",
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVarP(&manifestPath, "file", "f", "", "fleet manifest")
	_ = provisionCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := fleetfile.Load(manifestPath)
	if err != nil {
		return err
	}
	eng, closeStore, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	res, err := fleetfile.Apply(cmd.Context(), eng, m)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "drivers=%d vehicles=%d routes=%d duties=%d\n",
		res.Drivers, res.Vehicles, res.Routes, len(res.Duties))
	return err
}
