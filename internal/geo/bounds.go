package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// GeoBounds is a geographic box
type GeoBounds struct {
	SouthWest GeoPoint `json:"sw"`
	NorthEast GeoPoint `json:"ne"`
}

// Center returns the midpoint of the box in degrees
func (b GeoBounds) Center() GeoPoint {
	return GeoPoint{
		Latitude:  (b.SouthWest.Latitude + b.NorthEast.Latitude) / 2,
		Longitude: (b.SouthWest.Longitude + b.NorthEast.Longitude) / 2,
	}
}

// Contains reports whether g lies inside the box, edges included
func (b GeoBounds) Contains(g GeoPoint) bool {
	return g.Latitude >= b.SouthWest.Latitude && g.Latitude <= b.NorthEast.Latitude &&
		g.Longitude >= b.SouthWest.Longitude && g.Longitude <= b.NorthEast.Longitude
}

func (b GeoBounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// BoundsFromOrb converts an orb.Bound to GeoBounds
func BoundsFromOrb(b orb.Bound) GeoBounds {
	return GeoBounds{
		SouthWest: PointFromOrb(b.Min),
		NorthEast: PointFromOrb(b.Max),
	}
}

// TileBounds returns the geographic extent of a tile, computed through proj
func TileBounds(proj Projection, tile TileIndex, level uint) GeoBounds {
	topLeft := proj.TileXYToPixelXY(tile)
	bottomRight := proj.TileXYToPixelXY(TileIndex{X: tile.X + 1, Y: tile.Y + 1})

	nw := proj.PixelXYToLatLong(topLeft, level)
	se := proj.PixelXYToLatLong(bottomRight, level)
	return GeoBounds{
		SouthWest: GeoPoint{Latitude: se.Latitude, Longitude: nw.Longitude},
		NorthEast: GeoPoint{Latitude: nw.Latitude, Longitude: se.Longitude},
	}
}

// Point returns g as an orb.Point ([lon, lat])
func (g GeoPoint) Point() orb.Point {
	return orb.Point{g.Longitude, g.Latitude}
}

// PointFromOrb converts an orb.Point ([lon, lat]) to a GeoPoint
func PointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Latitude: p.Lat(), Longitude: p.Lon()}
}

// Maptile returns the tile as an orb maptile at level
func (t TileIndex) Maptile(level uint) maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(level))
}

// TileFromMaptile converts an orb maptile into a tile index and level
func TileFromMaptile(t maptile.Tile) (TileIndex, uint) {
	return TileIndex{X: float64(t.X), Y: float64(t.Y)}, uint(t.Z)
}
