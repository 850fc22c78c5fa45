package viewport

import (
	"math"

	"geotiles/internal/geo"
)

// Viewport is a screen rectangle centred on a geographic position
type Viewport struct {
	Center geo.GeoPoint `json:"center"`
	Level  uint         `json:"level"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
}

// Placement is a visible tile and the screen position of its top-left corner
type Placement struct {
	Tile    geo.TileIndex `json:"tile"`
	QuadKey string        `json:"quadkey"`
	ScreenX int           `json:"screenX"`
	ScreenY int           `json:"screenY"`
}

// origin returns the global pixel at the screen's top-left corner
func origin(proj geo.Projection, vp Viewport) geo.PixelPoint {
	center := proj.LatLongToPixelXY(vp.Center.Latitude, vp.Center.Longitude, vp.Level)
	return geo.PixelPoint{
		X: center.X - float64(vp.Width)/2,
		Y: center.Y - float64(vp.Height)/2,
	}
}

// VisibleTiles returns every tile on the map that intersects the viewport,
// row by row. Tiles beyond the map edge are skipped; the map does not wrap.
func VisibleTiles(proj geo.Projection, vp Viewport) []Placement {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil
	}

	o := origin(proj, vp)
	first := proj.PixelXYToTileXYAtLevel(o, vp.Level)
	last := proj.PixelXYToTileXYAtLevel(geo.PixelPoint{
		X: o.X + float64(vp.Width) - 1,
		Y: o.Y + float64(vp.Height) - 1,
	}, vp.Level)

	cols := int(last.X-first.X) + 1
	rows := int(last.Y-first.Y) + 1
	placements := make([]Placement, 0, cols*rows)
	for y := first.Y; y <= last.Y; y++ {
		for x := first.X; x <= last.X; x++ {
			tile := geo.TileIndex{X: x, Y: y}
			corner := proj.TileXYToPixelXY(tile)
			placements = append(placements, Placement{
				Tile:    tile,
				QuadKey: geo.TileXYToQuadKey(tile, vp.Level),
				ScreenX: int(math.Floor(corner.X - o.X)),
				ScreenY: int(math.Floor(corner.Y - o.Y)),
			})
		}
	}
	return placements
}

// GeoToScreen returns the screen position of g
func GeoToScreen(proj geo.Projection, vp Viewport, g geo.GeoPoint) (x, y float64) {
	o := origin(proj, vp)
	p := proj.LatLongToPixelXY(g.Latitude, g.Longitude, vp.Level)
	return p.X - o.X, p.Y - o.Y
}

// ScreenToGeo returns the geographic position under a screen position
func ScreenToGeo(proj geo.Projection, vp Viewport, x, y float64) geo.GeoPoint {
	o := origin(proj, vp)
	return proj.PixelXYToLatLong(geo.PixelPoint{X: o.X + x, Y: o.Y + y}, vp.Level)
}

// Pan moves the viewport so the map follows a drag of (dx, dy) screen pixels.
// The centre stops at the map edge.
func Pan(proj geo.Projection, vp Viewport, dx, dy float64) Viewport {
	center := proj.LatLongToPixelXY(vp.Center.Latitude, vp.Center.Longitude, vp.Level)
	vp.Center = proj.PixelXYToLatLong(onMap(proj, center.X-dx, center.Y-dy, vp.Level), vp.Level)
	return vp
}

// onMap clamps a pixel into [0, MapSize(level)] so unprojecting it stays finite
func onMap(proj geo.Projection, x, y float64, level uint) geo.PixelPoint {
	edge := float64(proj.MapSize(level))
	return geo.PixelPoint{
		X: min(max(x, 0), edge),
		Y: min(max(y, 0), edge),
	}
}

// ZoomAround changes the level while keeping the position under the screen
// point (x, y) fixed. The level is clamped to [0, MaxLevelOfDetail].
func ZoomAround(proj geo.Projection, vp Viewport, x, y float64, level uint) Viewport {
	level = min(level, geo.MaxLevelOfDetail)
	if level == vp.Level {
		return vp
	}

	anchor := ScreenToGeo(proj, vp, x, y)
	p := proj.LatLongToPixelXY(anchor.Latitude, anchor.Longitude, level)

	// Offset of the anchor from the screen centre
	offsetX := x - float64(vp.Width)/2
	offsetY := y - float64(vp.Height)/2

	vp.Level = level
	vp.Center = proj.PixelXYToLatLong(onMap(proj, p.X-offsetX, p.Y-offsetY, level), level)
	return vp
}
