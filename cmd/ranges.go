package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rangelab/rangeshift/internal/geo"
	"github.com/rangelab/rangeshift/internal/model"
)

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Manage population range polygons",
}

var rangesPopField string

var rangesLoadCmd = &cobra.Command{
	Use:   "load <ranges.shp>",
	Short: "Load range polygons from a shapefile",
	Long:  "Parses a range shapefile (already reprojected into the telemetry frame), converts polygons to EWKB, and replaces the stored range set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		popField := rangesPopField
		if popField == "" {
			popField = cfg.Ranges.PopulationField
		}

		rs, err := geo.LoadShapefile(args[0], popField, cfg.Ranges.Frame)
		if err != nil {
			return err
		}

		records := make([]model.RangePolygon, 0, rs.Len())
		for _, r := range rs.Ranges() {
			data, err := geo.EncodeGeom(r.Geom)
			if err != nil {
				return err
			}
			records = append(records, model.RangePolygon{
				Population: r.Population,
				Frame:      rs.Frame(),
				Area:       r.Area,
				Geom:       data,
			})
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.ReplaceRanges(ctx, records); err != nil {
			return err
		}

		zap.L().Info("range set replaced",
			zap.Int("ranges", len(records)),
			zap.String("frame", rs.Frame()),
		)
		return nil
	},
}

var rangesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded range polygons",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ranges, err := st.ListRanges(ctx)
		if err != nil {
			return err
		}

		for _, r := range ranges {
			// Area is in frame units squared; UTM frames are meters.
			fmt.Printf("%-30s %s %12.1f km2\n", r.Population, r.Frame, r.Area/1e6)
		}
		fmt.Printf("%d ranges\n", len(ranges))
		return nil
	},
}

func init() {
	rangesLoadCmd.Flags().StringVar(&rangesPopField, "population-field", "", "shapefile attribute holding the population name (default from config)")
	rangesCmd.AddCommand(rangesLoadCmd)
	rangesCmd.AddCommand(rangesListCmd)
	rootCmd.AddCommand(rangesCmd)
}
