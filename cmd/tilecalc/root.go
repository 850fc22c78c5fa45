package main

import (
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tilecalc",
		Short: "Web mercator tile and pixel calculator",
		Long: `Tilecalc converts between latitude/longitude, global pixel coordinates,
tile indices and quadkeys for Bing/Google style slippy maps.

Out of range input is clamped onto the map, never rejected.

Configuration can be set via environment variables or command-line flags.
Flags take precedence over environment variables.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Int("tile-size", 256, "Tile edge in pixels (TILECALC_TILE_SIZE)")
	rootCmd.PersistentFlags().IntP("level", "l", 12, "Level of detail, 0-23 (TILECALC_LEVEL)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newProjectCmd(),
		newUnprojectCmd(),
		newTileCmd(),
		newQuadKeyCmd(),
		newScaleCmd(),
	)

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
