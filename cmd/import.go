package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rangelab/rangeshift/internal/ingest"
	"github.com/rangelab/rangeshift/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <telemetry.csv|telemetry.xlsx>",
	Short: "Import telemetry fixes into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		fixer, err := ingest.LoadNameFixer(cfg.Ingest.NameFixFile)
		if err != nil {
			return err
		}
		opts := ingest.Options{
			Columns:         cfg.Ingest.Columns,
			TimestampLayout: cfg.Ingest.TimestampLayout,
			Fixer:           fixer,
		}

		var locs []model.Location
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "open %s", path)
			}
			defer f.Close() //nolint:errcheck
			locs, err = ingest.ReadCSV(f, opts)
			if err != nil {
				return err
			}
		case ".xlsx":
			locs, err = ingest.ReadXLSX(path, opts)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported telemetry format %q", filepath.Ext(path))
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.SaveLocations(ctx, locs)
		if err != nil {
			return err
		}

		// Flag home populations with no loaded range polygon. Not fatal:
		// ranges may simply not be loaded yet.
		if ranges, err := st.ListRanges(ctx); err == nil && len(ranges) > 0 {
			known := make(map[string]bool, len(ranges))
			for _, r := range ranges {
				known[r.Population] = true
			}
			unresolved := make(map[string]bool)
			for _, loc := range locs {
				if !known[loc.HomePopulation] {
					unresolved[loc.HomePopulation] = true
				}
			}
			for name := range unresolved {
				zap.L().Warn("home population has no range polygon",
					zap.String("population", name))
			}
		}

		zap.L().Info("telemetry imported",
			zap.String("path", path),
			zap.Int("locations", n),
			zap.String("frame", cfg.Ingest.Frame),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
