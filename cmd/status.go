package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.Counts(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("locations:  %d\n", counts.Locations)
		fmt.Printf("ranges:     %d\n", counts.Ranges)
		if counts.Locations > 0 {
			fmt.Printf("classified: %d (%.1f%%)\n", counts.Classified,
				100*float64(counts.Classified)/float64(counts.Locations))
		} else {
			fmt.Printf("classified: %d\n", counts.Classified)
		}
		fmt.Printf("summaries:  %d\n", counts.Summaries)

		run, err := st.LastRun(ctx)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Println("last run:   none")
			return nil
		}
		fmt.Printf("last run:   %s (%d individuals, %d locations, finished %s)\n",
			run.ID, run.Individuals, run.Locations, run.FinishedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
