package geo

import (
	"errors"
	"fmt"
	"strings"

	"geotiles/internal/bits"
)

// ErrInvalidQuadKey is returned when a quadkey contains anything but the
// digits 0-3 or is longer than the deepest supported level
var ErrInvalidQuadKey = errors.New("invalid quadkey")

// TileXYToQuadKey encodes a tile as a base-4 quadkey of length level.
// Level 0 gives the empty string.
func TileXYToQuadKey(tile TileIndex, level uint) string {
	if level > bits.MaxCrumbs {
		level = bits.MaxCrumbs
	}
	code := bits.Interleave(uint32(tile.X), uint32(tile.Y))

	var sb strings.Builder
	sb.Grow(int(level))
	for i := int(level) - 1; i >= 0; i-- {
		sb.WriteByte('0' + bits.GetCrumb(code, i))
	}
	return sb.String()
}

// QuadKeyToTileXY decodes a quadkey. The level is the quadkey length.
func QuadKeyToTileXY(quadKey string) (TileIndex, uint, error) {
	level := len(quadKey)
	if level > bits.MaxCrumbs {
		return TileIndex{}, 0, fmt.Errorf("%w: %d digits", ErrInvalidQuadKey, level)
	}

	var code uint64
	for i := 0; i < level; i++ {
		c := quadKey[i]
		if c < '0' || c > '3' {
			return TileIndex{}, 0, fmt.Errorf("%w: digit %q at %d", ErrInvalidQuadKey, c, i)
		}
		bits.SetCrumb(&code, level-1-i, c-'0')
	}

	x, y := bits.Deinterleave(code)
	return TileIndex{X: float64(x), Y: float64(y)}, uint(level), nil
}
