package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rangelab/rangeshift/internal/pipeline"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run the classification pass over imported telemetry",
	Long:  "Classifies every stored fix against the loaded range set, derives per-individual state transitions, and persists labels and summaries. Re-running replaces the previous pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(st, cfg.Ingest.Frame, cfg.Pipeline.Concurrency)
		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %d individuals, %d locations classified\n",
			result.Run.ID, result.Run.Individuals, result.Run.Locations)
		for _, s := range result.Summaries {
			fmt.Printf("  %-12s pops=%d transit=%v switches=%d (%.2f/yr)\n",
				s.AnimalID, s.Populations, s.InTransit, s.TotalSwitches, s.SwitchesPerYear)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
