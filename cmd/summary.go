package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rangelab/rangeshift/internal/export"
)

var (
	summaryCSVPath  string
	summaryXLSXPath string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show or export per-individual summary records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summaries, err := st.ListSummaries(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return eris.New("no summaries found, run classify first")
		}

		switch {
		case summaryCSVPath != "":
			f, err := os.Create(summaryCSVPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", summaryCSVPath)
			}
			defer f.Close() //nolint:errcheck
			if err := export.SummariesCSV(f, summaries); err != nil {
				return err
			}
			fmt.Printf("wrote %d summaries to %s\n", len(summaries), summaryCSVPath)

		case summaryXLSXPath != "":
			fixes, err := st.ListClassified(ctx)
			if err != nil {
				return err
			}
			if err := export.Workbook(summaryXLSXPath, fixes, summaries); err != nil {
				return err
			}
			fmt.Printf("wrote %d summaries and %d points to %s\n", len(summaries), len(fixes), summaryXLSXPath)

		default:
			for _, s := range summaries {
				fmt.Printf("%-12s home=%s(%v) pops=%d transit=%v visited=[%s] switches=%d rate=%.2f/yr tracked=%.1fd\n",
					s.AnimalID, s.HomePopulation, s.HomeKnown, s.Populations, s.InTransit,
					s.PopulationsVisited, s.TotalSwitches, s.SwitchesPerYear, s.TrackedDays)
			}
		}
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryCSVPath, "csv", "", "export summaries to a CSV file")
	summaryCmd.Flags().StringVar(&summaryXLSXPath, "xlsx", "", "export points and summaries to an XLSX workbook")
	rootCmd.AddCommand(summaryCmd)
}
