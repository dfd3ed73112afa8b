package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rangelab/rangeshift/internal/aggregate"
	"github.com/rangelab/rangeshift/internal/export"
	"github.com/rangelab/rangeshift/internal/model"
)

var (
	reportBy       string
	reportCSVPath  string
	reportXLSXPath string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Grouped state and transition tables",
	Long:  "Reduces the classified dataset into per-group counts and percentages of state and transition labels, grouped by a categorical covariate.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fixes, err := st.ListClassified(ctx)
		if err != nil {
			return err
		}
		if len(fixes) == 0 {
			return eris.New("no classified points found, run classify first")
		}

		groups, err := aggregate.Group(fixes, aggregate.Covariate(reportBy))
		if err != nil {
			return err
		}

		switch {
		case reportCSVPath != "":
			f, err := os.Create(reportCSVPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", reportCSVPath)
			}
			defer f.Close() //nolint:errcheck
			if err := export.ReportCSV(f, groups); err != nil {
				return err
			}
			fmt.Printf("wrote %d groups to %s\n", len(groups), reportCSVPath)

		case reportXLSXPath != "":
			if err := export.ReportXLSX(reportXLSXPath, "By "+reportBy, groups); err != nil {
				return err
			}
			fmt.Printf("wrote %d groups to %s\n", len(groups), reportXLSXPath)

		default:
			for _, g := range groups {
				fmt.Printf("%-20s n=%d home=%.1f%% other=%.1f%% transit=%.1f%%\n",
					g.Group, g.Points,
					g.StatePercents[model.StateHome],
					g.StatePercents[model.StateOther],
					g.StatePercents[model.StateTransit],
				)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportBy, "by", string(aggregate.ByPopulation), "grouping covariate: age, sex, age-sex, population")
	reportCmd.Flags().StringVar(&reportCSVPath, "csv", "", "export report to a CSV file")
	reportCmd.Flags().StringVar(&reportXLSXPath, "xlsx", "", "export report to an XLSX file")
	rootCmd.AddCommand(reportCmd)
}
