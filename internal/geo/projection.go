package geo

const (
	MaxLatitude  = 85.05112878
	MinLatitude  = -85.05112878
	MaxLongitude = 180.0
	MinLongitude = -180.0

	// EarthRadius is the WGS-84 equatorial radius in meters.
	EarthRadius = 6378137.0

	MaxLevelOfDetail = 23
	DefaultTileSize  = 256
)

// GeoPoint is a WGS-84 position in degrees
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// PixelPoint is a position in the global pixel raster at some level of detail,
// origin top-left
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TileIndex identifies a tile. Both fields hold integer values.
type TileIndex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projection converts between geographic, global pixel and tile space for a
// square tiling that doubles in size with every level of detail.
//
// No method panics or returns an error. Out of range coordinates are clamped.
type Projection interface {
	TileSize() uint
	MapSize(level uint) uint64
	GroundResolution(latitude float64, level uint) float64
	MapScale(latitude float64, level uint, screenDpi int) float64
	LatLongToPixelXY(latitude, longitude float64, level uint) PixelPoint
	PixelXYToLatLong(pixel PixelPoint, level uint) GeoPoint
	PixelXYToTileXY(pixel PixelPoint) TileIndex
	PixelXYToTileXYAtLevel(pixel PixelPoint, level uint) TileIndex
	TileXYToPixelXY(tile TileIndex) PixelPoint
}

func clip(n, minValue, maxValue float64) float64 {
	return min(max(n, minValue), maxValue)
}
