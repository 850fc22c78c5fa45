package geo

import (
	"math"
	"math/bits"

	"github.com/paulmach/orb"
)

// Mercator is the spherical web mercator projection used by Bing/Google style
// slippy maps. It is safe for concurrent use; the tile size is fixed at
// construction.
//
// Levels deeper than MaxLevel are treated as MaxLevel by every method.
type Mercator struct {
	tileSize uint
	maxLevel uint
}

// NewMercator returns a projection with the given tile edge in pixels. Zero
// selects DefaultTileSize.
func NewMercator(tileSize uint) *Mercator {
	if tileSize == 0 {
		tileSize = DefaultTileSize
	}
	return &Mercator{
		tileSize: tileSize,
		maxLevel: uint(bits.LeadingZeros64(uint64(tileSize))),
	}
}

// MaxLevel is the deepest level whose map size fits in a uint64
// (55 for 256 pixel tiles).
func (m *Mercator) MaxLevel() uint {
	return m.maxLevel
}

func (m *Mercator) level(level uint) uint {
	return min(level, m.maxLevel)
}

func (m *Mercator) TileSize() uint {
	return m.tileSize
}

// MapSize returns the width and height of the whole map in pixels.
func (m *Mercator) MapSize(level uint) uint64 {
	return uint64(m.tileSize) << m.level(level)
}

// GroundResolution returns meters per pixel at the given latitude.
func (m *Mercator) GroundResolution(latitude float64, level uint) float64 {
	latitude = clip(latitude, MinLatitude, MaxLatitude)
	return math.Cos(latitude*math.Pi/180) * 2 * math.Pi * EarthRadius / float64(m.MapSize(level))
}

// MapScale returns N of the 1:N map scale for a screen of the given dpi.
func (m *Mercator) MapScale(latitude float64, level uint, screenDpi int) float64 {
	return m.GroundResolution(latitude, level) * float64(screenDpi) / 0.0254
}

// LatLongToPixelXY projects a geographic position into the pixel raster of
// level. Latitude and longitude are clamped to the projection's domain and
// the result is clamped to [0, MapSize(level)-1] on each axis.
func (m *Mercator) LatLongToPixelXY(latitude, longitude float64, level uint) PixelPoint {
	latitude = clip(latitude, MinLatitude, MaxLatitude)
	longitude = clip(longitude, MinLongitude, MaxLongitude)
	level = m.level(level)

	x := (longitude + 180) / 360
	sinLatitude := math.Sin(latitude * math.Pi / 180)
	y := 0.5 - math.Log((1+sinLatitude)/(1-sinLatitude))/(4*math.Pi)

	// Always project at the finest level and rescale by a power of two.
	// Scaling by 2^n is exact in float64, so every level sees the same bits
	// as level 23 would. Projecting directly at a coarse level rounds
	// differently in the last bits.
	finest := float64(m.MapSize(MaxLevelOfDetail))
	shift := int(level) - MaxLevelOfDetail
	px := math.Ldexp(x*finest, shift)
	py := math.Ldexp(y*finest, shift)

	edge := float64(m.MapSize(level)) - 1
	return PixelPoint{
		X: clip(px, 0, edge),
		Y: clip(py, 0, edge),
	}
}

// LatLongPointToPixelXY is LatLongToPixelXY for an orb.Point, which holds
// [longitude, latitude].
func (m *Mercator) LatLongPointToPixelXY(p orb.Point, level uint) PixelPoint {
	return m.LatLongToPixelXY(p.Lat(), p.Lon(), level)
}

// PixelXYToLatLong is the inverse of LatLongToPixelXY. The pixel is not
// validated: coordinates far outside [0, MapSize] give meaningless results
// (latitude saturates towards ±90, or NaN once sinh overflows).
func (m *Mercator) PixelXYToLatLong(pixel PixelPoint, level uint) GeoPoint {
	level = m.level(level)
	mapSize := float64(m.MapSize(level))
	x := pixel.X/mapSize - 0.5
	y := 0.5 - pixel.Y/mapSize

	return GeoPoint{
		Latitude:  math.Atan(math.Sinh(2*math.Pi*y)) * 180 / math.Pi,
		Longitude: 360 * x,
	}
}

// PixelXYToTileXY returns the tile containing pixel.
func (m *Mercator) PixelXYToTileXY(pixel PixelPoint) TileIndex {
	size := float64(m.tileSize)
	return TileIndex{
		X: math.Floor(pixel.X / size),
		Y: math.Floor(pixel.Y / size),
	}
}

// PixelXYToTileXYAtLevel is PixelXYToTileXY with the index clamped into
// [0, 2^level-1], so a pixel that rounded onto the far edge of the map still
// lands on the last tile.
func (m *Mercator) PixelXYToTileXYAtLevel(pixel PixelPoint, level uint) TileIndex {
	size := float64(m.tileSize)
	last := math.Ldexp(1, int(m.level(level))) - 1
	return TileIndex{
		X: math.Floor(clip(pixel.X/size, 0, last)),
		Y: math.Floor(clip(pixel.Y/size, 0, last)),
	}
}

// TileXYToPixelXY returns the top-left pixel of tile.
func (m *Mercator) TileXYToPixelXY(tile TileIndex) PixelPoint {
	size := float64(m.tileSize)
	return PixelPoint{
		X: tile.X * size,
		Y: tile.Y * size,
	}
}
