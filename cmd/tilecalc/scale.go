package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type scaleResult struct {
	GroundResolution float64 `json:"groundResolution"`
	MapScale         float64 `json:"mapScale"`
	MapSize          uint64  `json:"mapSize"`
}

func newScaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Print ground resolution and map scale",
		Long: `Print meters per pixel, the 1:N map scale and the map size in pixels at a
latitude and level.

Examples:
  tilecalc scale --lat 0 --level 1
  tilecalc scale --lat 42.36 --level 17 --dpi 144`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, _ := cmd.Flags().GetFloat64("lat")
			dpi, _ := cmd.Flags().GetInt("dpi")
			if dpi <= 0 {
				return fmt.Errorf("dpi must be positive, got %d", dpi)
			}

			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			proj := cfg.Projection()

			res := scaleResult{
				GroundResolution: proj.GroundResolution(lat, cfg.Level),
				MapScale:         proj.MapScale(lat, cfg.Level, dpi),
				MapSize:          proj.MapSize(cfg.Level),
			}

			return cfg.print(cmd, res, "Ground resolution: %.4f m/px\nMap scale: 1:%.2f\nMap size: %d px\n",
				res.GroundResolution, res.MapScale, res.MapSize)
		},
	}

	cmd.Flags().Float64("lat", 0, "Latitude in degrees (required)")
	cmd.Flags().Int("dpi", 96, "Screen resolution in dots per inch")
	cmd.MarkFlagRequired("lat")

	return cmd
}
