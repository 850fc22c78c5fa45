package geo

// Mask is a geofence over the tiles of one level of detail. Tiles are packed
// one bit each, MSB first, row-major inside Bounds.
type Mask struct {
	data   []byte
	bounds Bounds
	level  uint
}

// Bounds is an inclusive range of tile indices
type Bounds struct {
	MinX, MinY, MaxX, MaxY int64
}

// NewMask creates an empty mask (nothing allowed) covering bounds at level
func NewMask(bounds Bounds, level uint) *Mask {
	width := int(bounds.MaxX - bounds.MinX + 1)
	height := int(bounds.MaxY - bounds.MinY + 1)
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	totalTiles := width * height
	bytesNeeded := (totalTiles + 7) / 8 // Round up to nearest byte

	return &Mask{
		data:   make([]byte, bytesNeeded),
		bounds: bounds,
		level:  level,
	}
}

// NewMaskFromGeoBounds creates a mask at level that allows every tile
// touching the geographic box b
func NewMaskFromGeoBounds(proj Projection, b GeoBounds, level uint) *Mask {
	nw := proj.PixelXYToTileXYAtLevel(proj.LatLongToPixelXY(b.NorthEast.Latitude, b.SouthWest.Longitude, level), level)
	se := proj.PixelXYToTileXYAtLevel(proj.LatLongToPixelXY(b.SouthWest.Latitude, b.NorthEast.Longitude, level), level)

	bounds := Bounds{
		MinX: int64(nw.X),
		MinY: int64(nw.Y),
		MaxX: int64(se.X),
		MaxY: int64(se.Y),
	}
	m := NewMask(bounds, level)
	for y := bounds.MinY; y <= bounds.MaxY; y++ {
		for x := bounds.MinX; x <= bounds.MaxX; x++ {
			m.SetTile(x, y, true)
		}
	}
	return m
}

// Level returns the level of detail the mask's tiles belong to
func (m *Mask) Level() uint {
	return m.level
}

// Bounds returns the tile range covered by the mask
func (m *Mask) Bounds() Bounds {
	return m.bounds
}

func (m *Mask) bitIndex(x, y int64) (int, bool) {
	if x < m.bounds.MinX || x > m.bounds.MaxX || y < m.bounds.MinY || y > m.bounds.MaxY {
		return 0, false
	}

	// Convert to local coordinates
	localX := x - m.bounds.MinX
	localY := y - m.bounds.MinY
	width := m.bounds.MaxX - m.bounds.MinX + 1

	idx := int(localY*width + localX)
	if idx/8 >= len(m.data) {
		return 0, false
	}
	return idx, true
}

// SetTile sets a tile as allowed (true) or forbidden (false)
func (m *Mask) SetTile(x, y int64, allowed bool) {
	idx, ok := m.bitIndex(x, y)
	if !ok {
		return // Out of bounds
	}

	if allowed {
		m.data[idx/8] |= 1 << (7 - idx%8) // MSB first
	} else {
		m.data[idx/8] &^= 1 << (7 - idx%8)
	}
}

// IsTileAllowed checks if a tile is allowed
func (m *Mask) IsTileAllowed(x, y int64) bool {
	idx, ok := m.bitIndex(x, y)
	if !ok {
		return false // Out of bounds
	}
	return m.data[idx/8]&(1<<(7-idx%8)) != 0
}

// Allows reports whether the tile containing the position is allowed
func (m *Mask) Allows(proj Projection, latitude, longitude float64) bool {
	pixel := proj.LatLongToPixelXY(latitude, longitude, m.level)
	tile := proj.PixelXYToTileXYAtLevel(pixel, m.level)
	return m.IsTileAllowed(int64(tile.X), int64(tile.Y))
}
