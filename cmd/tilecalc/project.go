package main

import (
	"github.com/spf13/cobra"

	"geotiles/internal/geo"
)

type projectResult struct {
	Pixel   geo.PixelPoint `json:"pixel"`
	Tile    geo.TileIndex  `json:"tile"`
	QuadKey string         `json:"quadkey"`
	Level   uint           `json:"level"`
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project a latitude/longitude to pixel, tile and quadkey",
		Long: `Project a geographic position onto the pixel raster of a level.

Examples:
  tilecalc project --lat 47.6097 --lon -122.3331 --level 3
  tilecalc project --lat 42.3551 --lon -71.0656 --level 17 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")

			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			proj := cfg.Projection()

			pixel := proj.LatLongToPixelXY(lat, lon, cfg.Level)
			tile := proj.PixelXYToTileXYAtLevel(pixel, cfg.Level)
			res := projectResult{
				Pixel:   pixel,
				Tile:    tile,
				QuadKey: geo.TileXYToQuadKey(tile, cfg.Level),
				Level:   cfg.Level,
			}

			return cfg.print(cmd, res, "Pixel: %.3f, %.3f\nTile: %d/%d/%d\nQuadkey: %s\n",
				pixel.X, pixel.Y, cfg.Level, int64(tile.X), int64(tile.Y), res.QuadKey)
		},
	}

	cmd.Flags().Float64("lat", 0, "Latitude in degrees (required)")
	cmd.Flags().Float64("lon", 0, "Longitude in degrees (required)")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")

	return cmd
}

func newUnprojectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unproject",
		Short: "Convert a global pixel to latitude/longitude",
		Long: `Convert a global pixel coordinate at a level back to a geographic position.

Examples:
  tilecalc unproject --x 328 --y 715 --level 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")

			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			proj := cfg.Projection()

			// Keep the pixel on the map so the inverse stays finite
			edge := float64(proj.MapSize(cfg.Level))
			pixel := geo.PixelPoint{X: min(max(x, 0), edge), Y: min(max(y, 0), edge)}

			g := proj.PixelXYToLatLong(pixel, cfg.Level)
			return cfg.print(cmd, g, "Lat: %.8f\nLon: %.8f\n", g.Latitude, g.Longitude)
		},
	}

	cmd.Flags().Float64("x", 0, "Pixel x (required)")
	cmd.Flags().Float64("y", 0, "Pixel y (required)")
	cmd.MarkFlagRequired("x")
	cmd.MarkFlagRequired("y")

	return cmd
}
