package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"geotiles/internal/geo"
)

// Config holds the global settings shared by every subcommand
type Config struct {
	TileSize int
	Level    uint
	// LevelSet is true when the level came from a flag or the environment
	// rather than the default
	LevelSet bool
	JSON     bool
}

// LoadConfig loads configuration from environment variables and command flags.
// Flags take precedence over environment variables.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	cfg := Config{}

	cfg.TileSize = getConfigInt(cmd, "tile-size", "TILECALC_TILE_SIZE", geo.DefaultTileSize)
	if cfg.TileSize <= 0 {
		return cfg, fmt.Errorf("tile size must be positive, got %d", cfg.TileSize)
	}

	level := getConfigInt(cmd, "level", "TILECALC_LEVEL", 12)
	cfg.Level = uint(min(max(level, 0), geo.MaxLevelOfDetail))
	cfg.LevelSet = cmd.Flags().Changed("level") || os.Getenv("TILECALC_LEVEL") != ""

	cfg.JSON, _ = cmd.Flags().GetBool("json")

	return cfg, nil
}

// Projection returns the projection for the configured tile size
func (c Config) Projection() *geo.Mercator {
	return geo.NewMercator(uint(c.TileSize))
}

// print writes v as JSON, or as text when JSON output is off
func (c Config) print(cmd *cobra.Command, v any, text string, args ...any) error {
	out := cmd.OutOrStdout()
	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintf(out, text, args...)
	return err
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	// Check if flag was explicitly set
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}

	// Check environment variable
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	// Use default
	return defaultValue
}
