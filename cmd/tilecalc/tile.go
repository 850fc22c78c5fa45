package main

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"geotiles/internal/geo"
)

type tileResult struct {
	Tile    geo.TileIndex  `json:"tile"`
	Origin  geo.PixelPoint `json:"origin"`
	QuadKey string         `json:"quadkey,omitempty"`
	// Maptile is the z/x/y path of the tile, set with the level
	Maptile string         `json:"maptile,omitempty"`
	Bounds  *geo.GeoBounds `json:"bounds,omitempty"`
}

func newTileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Find the tile containing a global pixel",
		Long: `Find the tile containing a global pixel and the pixel at its top-left corner.

When a level is given, by flag or TILECALC_LEVEL, the tile is clamped onto
the map at that level and its quadkey, z/x/y path and bounds are printed too.

Examples:
  tilecalc tile --x 328 --y 715
  tilecalc tile --x 2048 --y 2048 --level 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")

			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			proj := cfg.Projection()
			pixel := geo.PixelPoint{X: x, Y: y}

			var res tileResult
			if cfg.LevelSet {
				res.Tile = proj.PixelXYToTileXYAtLevel(pixel, cfg.Level)
				res.QuadKey = geo.TileXYToQuadKey(res.Tile, cfg.Level)

				mt := res.Tile.Maptile(cfg.Level)
				bounds := geo.BoundsFromOrb(mt.Bound())
				res.Maptile = zxy(mt)
				res.Bounds = &bounds
			} else {
				res.Tile = proj.PixelXYToTileXY(pixel)
			}
			res.Origin = proj.TileXYToPixelXY(res.Tile)

			text := "Tile: %d, %d\nOrigin: %.0f, %.0f\n"
			fmtArgs := []any{int64(res.Tile.X), int64(res.Tile.Y), res.Origin.X, res.Origin.Y}
			if res.QuadKey != "" {
				text += "Quadkey: %s\nMaptile: %s\nBounds: %.6f, %.6f, %.6f, %.6f\n"
				fmtArgs = append(fmtArgs, res.QuadKey, res.Maptile,
					res.Bounds.SouthWest.Latitude, res.Bounds.SouthWest.Longitude,
					res.Bounds.NorthEast.Latitude, res.Bounds.NorthEast.Longitude)
			}
			return cfg.print(cmd, res, text, fmtArgs...)
		},
	}

	cmd.Flags().Float64("x", 0, "Pixel x (required)")
	cmd.Flags().Float64("y", 0, "Pixel y (required)")
	cmd.MarkFlagRequired("x")
	cmd.MarkFlagRequired("y")

	return cmd
}

type quadKeyResult struct {
	X       int64  `json:"x"`
	Y       int64  `json:"y"`
	Level   uint   `json:"level"`
	QuadKey string `json:"quadkey"`
}

func newQuadKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quadkey",
		Short: "Encode a tile as a quadkey, or decode a quadkey",
		Long: `Encode tile x/y at a level as a quadkey, or decode a quadkey with --qk.
A z/x/y tile path can be encoded with --zxy.

Examples:
  tilecalc quadkey --qk 021
  tilecalc quadkey --x 1 --y 2 --level 3
  tilecalc quadkey --zxy 3/1/2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}

			var res quadKeyResult
			if cmd.Flags().Changed("qk") {
				qk, _ := cmd.Flags().GetString("qk")
				tile, level, err := geo.QuadKeyToTileXY(qk)
				if err != nil {
					return err
				}
				res = quadKeyResult{X: int64(tile.X), Y: int64(tile.Y), Level: level, QuadKey: qk}
			} else if cmd.Flags().Changed("zxy") {
				path, _ := cmd.Flags().GetString("zxy")
				mt, err := parseZXY(path)
				if err != nil {
					return err
				}
				tile, level := geo.TileFromMaptile(mt)
				res = quadKeyResult{
					X:       int64(tile.X),
					Y:       int64(tile.Y),
					Level:   level,
					QuadKey: geo.TileXYToQuadKey(tile, level),
				}
			} else {
				if !cmd.Flags().Changed("x") || !cmd.Flags().Changed("y") {
					return errors.New("one of --qk, --zxy, or both --x and --y is required")
				}
				x, _ := cmd.Flags().GetInt64("x")
				y, _ := cmd.Flags().GetInt64("y")

				// Clamp onto the map at the level
				last := int64(1)<<cfg.Level - 1
				tile := geo.TileIndex{
					X: float64(min(max(x, 0), last)),
					Y: float64(min(max(y, 0), last)),
				}
				res = quadKeyResult{
					X:       int64(tile.X),
					Y:       int64(tile.Y),
					Level:   cfg.Level,
					QuadKey: geo.TileXYToQuadKey(tile, cfg.Level),
				}
			}

			return cfg.print(cmd, res, "Tile: %d/%d/%d\nQuadkey: %s\n", res.Level, res.X, res.Y, res.QuadKey)
		},
	}

	cmd.Flags().String("qk", "", "Quadkey to decode")
	cmd.Flags().Int64("x", 0, "Tile x")
	cmd.Flags().Int64("y", 0, "Tile y")
	cmd.Flags().String("zxy", "", "Tile path z/x/y to encode")
	cmd.MarkFlagsMutuallyExclusive("qk", "zxy", "x")
	cmd.MarkFlagsMutuallyExclusive("qk", "zxy", "y")

	return cmd
}

func zxy(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// parseZXY reads a z/x/y tile path, rejecting tiles off the map
func parseZXY(path string) (maptile.Tile, error) {
	var z, x, y uint32
	var rest string
	if n, _ := fmt.Sscanf(path, "%d/%d/%d%s", &z, &x, &y, &rest); n != 3 {
		return maptile.Tile{}, fmt.Errorf("invalid tile path %q, expected z/x/y", path)
	}
	if z > geo.MaxLevelOfDetail {
		return maptile.Tile{}, fmt.Errorf("tile level %d exceeds %d", z, geo.MaxLevelOfDetail)
	}

	t := maptile.New(x, y, maptile.Zoom(z))
	if !t.Valid() {
		return maptile.Tile{}, fmt.Errorf("tile %s is off the map", path)
	}
	return t, nil
}
