package geo

import (
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"
)

// Test web mercator conversions between geographic, pixel and tile space

func TestNewMercatorDefaultTileSize(t *testing.T) {
	if got := NewMercator(0).TileSize(); got != DefaultTileSize {
		t.Errorf("NewMercator(0).TileSize() = %d, expected %d", got, DefaultTileSize)
	}
	if got := NewMercator(512).TileSize(); got != 512 {
		t.Errorf("NewMercator(512).TileSize() = %d, expected 512", got)
	}
}

func TestMapSize(t *testing.T) {
	m := NewMercator(256)

	tests := []struct {
		level    uint
		expected uint64
	}{
		{0, 256},
		{1, 512},
		{2, 1024},
		{10, 262144},
		{23, 2147483648},
	}

	for _, tt := range tests {
		if got := m.MapSize(tt.level); got != tt.expected {
			t.Errorf("MapSize(%d) = %d, expected %d", tt.level, got, tt.expected)
		}
	}

	// Each level doubles the map
	for level := uint(0); level < MaxLevelOfDetail; level++ {
		if m.MapSize(level+1) != 2*m.MapSize(level) {
			t.Errorf("MapSize(%d) = %d is not twice MapSize(%d) = %d",
				level+1, m.MapSize(level+1), level, m.MapSize(level))
		}
	}

	if got := NewMercator(512).MapSize(1); got != 1024 {
		t.Errorf("MapSize(1) with 512px tiles = %d, expected 1024", got)
	}
}

func TestDeepLevelsClampToMaxLevel(t *testing.T) {
	tests := []struct {
		tileSize uint
		maxLevel uint
	}{
		{256, 55},
		{512, 54},
		{1, 63},
	}

	for _, tt := range tests {
		m := NewMercator(tt.tileSize)
		if m.MaxLevel() != tt.maxLevel {
			t.Errorf("MaxLevel() with %dpx tiles = %d, expected %d", tt.tileSize, m.MaxLevel(), tt.maxLevel)
		}

		deepest := m.MapSize(tt.maxLevel)
		if deepest == 0 {
			t.Errorf("MapSize(%d) with %dpx tiles overflowed", tt.maxLevel, tt.tileSize)
		}

		for _, level := range []uint{tt.maxLevel + 1, 60, 64, 100} {
			if got := m.MapSize(level); got != deepest {
				t.Errorf("MapSize(%d) with %dpx tiles = %d, expected %d", level, tt.tileSize, got, deepest)
			}

			edge := float64(deepest - 1)
			for _, pos := range []GeoPoint{{0, 0}, {MaxLatitude, MinLongitude}, {MinLatitude, MaxLongitude}} {
				p := m.LatLongToPixelXY(pos.Latitude, pos.Longitude, level)
				if p.X < 0 || p.Y < 0 || p.X > edge || p.Y > edge {
					t.Errorf("LatLongToPixelXY(%v, %d) = %+v, outside [0, %v]", pos, level, p, edge)
				}
			}

			res := m.GroundResolution(0, level)
			if math.IsInf(res, 0) || res <= 0 {
				t.Errorf("GroundResolution(0, %d) = %v", level, res)
			}

			tile := m.PixelXYToTileXYAtLevel(PixelPoint{X: math.MaxFloat64, Y: -1}, level)
			if tile.X != math.Ldexp(1, int(tt.maxLevel))-1 || tile.Y != 0 {
				t.Errorf("PixelXYToTileXYAtLevel at level %d = %+v", level, tile)
			}
		}
	}

	// The map centre stays the centre at the deepest levels
	m := NewMercator(256)
	centre := m.LatLongToPixelXY(0, 0, 56)
	if centre.X != math.Ldexp(1, 62) || centre.Y != math.Ldexp(1, 62) {
		t.Errorf("LatLongToPixelXY(0, 0, 56) = %+v, expected 2^62 on both axes", centre)
	}
	g := m.PixelXYToLatLong(centre, 60)
	if math.Abs(g.Latitude) > 1e-9 || math.Abs(g.Longitude) > 1e-9 {
		t.Errorf("PixelXYToLatLong of the centre at level 60 = %+v", g)
	}
}

func TestGroundResolution(t *testing.T) {
	m := NewMercator(256)

	// Equator at level 0: 2*pi*R / 256
	want := 2 * math.Pi * EarthRadius / 256
	if got := m.GroundResolution(0, 0); math.Abs(got-want) > 1e-6 {
		t.Errorf("GroundResolution(0, 0) = %f, expected %f", got, want)
	}

	r1 := m.GroundResolution(0, 1)
	r2 := m.GroundResolution(0, 2)
	r10 := m.GroundResolution(0, 10)
	if !(r1 > r2 && r2 > r10) {
		t.Errorf("ground resolution should decrease with level: %f, %f, %f", r1, r2, r10)
	}

	// Meridians converge toward the poles
	if m.GroundResolution(60, 5) >= m.GroundResolution(30, 5) {
		t.Errorf("ground resolution should decrease with latitude")
	}

	// cos(60) = 0.5
	if got, want := m.GroundResolution(60, 5), m.GroundResolution(0, 5)/2; math.Abs(got-want) > 1e-6 {
		t.Errorf("GroundResolution(60, 5) = %f, expected %f", got, want)
	}

	// Latitude is clamped before use
	if m.GroundResolution(90, 3) != m.GroundResolution(MaxLatitude, 3) {
		t.Errorf("GroundResolution should clamp latitude 90 to MaxLatitude")
	}
	if m.GroundResolution(-90, 3) != m.GroundResolution(MinLatitude, 3) {
		t.Errorf("GroundResolution should clamp latitude -90 to MinLatitude")
	}
}

func TestMapScale(t *testing.T) {
	m := NewMercator(256)

	want := m.GroundResolution(0, 0) * 96 / 0.0254
	if got := m.MapScale(0, 0, 96); math.Abs(got-want) > 1e-6 {
		t.Errorf("MapScale(0, 0, 96) = %f, expected %f", got, want)
	}

	// Published Bing value for level 1 at the equator and 96 dpi
	if got := m.MapScale(0, 1, 96); math.Abs(got-295829355.454566) > 1e-3 {
		t.Errorf("MapScale(0, 1, 96) = %f, expected ~295829355.454566", got)
	}
}

func TestLatLongToPixelXYKnownValues(t *testing.T) {
	m := NewMercator(256)

	tests := []struct {
		name     string
		lat, lon float64
		level    uint
		expected PixelPoint
	}{
		{name: "Equator prime meridian", lat: 0, lon: 0, level: 1, expected: PixelPoint{256, 256}},
		{name: "Antimeridian west", lat: 0, lon: -180, level: 1, expected: PixelPoint{0, 256}},
		{name: "Antimeridian east clamps to edge", lat: 0, lon: 180, level: 1, expected: PixelPoint{511, 256}},
		{name: "Quarter east", lat: 0, lon: 90, level: 1, expected: PixelPoint{384, 256}},
		{name: "Level zero center", lat: 0, lon: 0, level: 0, expected: PixelPoint{128, 128}},
		{name: "Finest level center", lat: 0, lon: 0, level: 23, expected: PixelPoint{1073741824, 1073741824}},
		{name: "North west corner", lat: MaxLatitude, lon: MinLongitude, level: 3, expected: PixelPoint{0, 0}},
		{name: "South east corner", lat: MinLatitude, lon: MaxLongitude, level: 3, expected: PixelPoint{2047, 2047}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.LatLongToPixelXY(tt.lat, tt.lon, tt.level)
			if math.Abs(got.X-tt.expected.X) > 1e-6 || math.Abs(got.Y-tt.expected.Y) > 1e-6 {
				t.Errorf("LatLongToPixelXY(%f, %f, %d) = %+v, expected %+v",
					tt.lat, tt.lon, tt.level, got, tt.expected)
			}
		})
	}
}

func TestLatLongToPixelXYClamping(t *testing.T) {
	m := NewMercator(256)

	pole := m.LatLongToPixelXY(90, 0, 5)
	edge := m.LatLongToPixelXY(MaxLatitude, 0, 5)
	if pole.Y != edge.Y {
		t.Errorf("north pole y = %f, expected clamp to %f", pole.Y, edge.Y)
	}

	south := m.LatLongToPixelXY(-90, 0, 5)
	southEdge := m.LatLongToPixelXY(MinLatitude, 0, 5)
	if south.Y != southEdge.Y {
		t.Errorf("south pole y = %f, expected clamp to %f", south.Y, southEdge.Y)
	}

	if got := m.LatLongToPixelXY(0, 540, 5); got.X != m.LatLongToPixelXY(0, 180, 5).X {
		t.Errorf("longitude 540 should clamp to 180, got x = %f", got.X)
	}
	if got := m.LatLongToPixelXY(0, -1000, 5); got.X != 0 {
		t.Errorf("longitude -1000 should clamp to x = 0, got %f", got.X)
	}

	// Everything stays inside [0, mapSize-1]
	edgeMax := float64(m.MapSize(5)) - 1
	inputs := [][2]float64{{90, 180}, {-90, -180}, {1e9, -1e9}, {-1e9, 1e9}, {85.06, 179.9999}}
	for _, in := range inputs {
		p := m.LatLongToPixelXY(in[0], in[1], 5)
		if p.X < 0 || p.X > edgeMax || p.Y < 0 || p.Y > edgeMax {
			t.Errorf("LatLongToPixelXY(%f, %f, 5) = %+v outside [0, %f]", in[0], in[1], p, edgeMax)
		}
	}
}

func TestLatLongToPixelXYDownscalesFromFinestLevel(t *testing.T) {
	m := NewMercator(256)

	points := [][2]float64{
		{42.3601, -71.0589},
		{51.507222, -0.1275},
		{-33.8688, 151.2093},
		{35.6895, 139.6917},
		{-12.5, -45.25},
	}

	for _, pt := range points {
		finest := m.LatLongToPixelXY(pt[0], pt[1], MaxLevelOfDetail)
		for level := uint(1); level < MaxLevelOfDetail; level++ {
			shift := int(level) - MaxLevelOfDetail
			got := m.LatLongToPixelXY(pt[0], pt[1], level)
			if got.X != math.Ldexp(finest.X, shift) || got.Y != math.Ldexp(finest.Y, shift) {
				t.Errorf("level %d pixel %+v is not the level 23 pixel %+v scaled by 2^%d",
					level, got, finest, shift)
			}
		}
	}
}

func TestLatLongPointToPixelXY(t *testing.T) {
	m := NewMercator(256)

	// orb.Point is [lon, lat]
	got := m.LatLongPointToPixelXY(orb.Point{-71.0589, 42.3601}, 12)
	want := m.LatLongToPixelXY(42.3601, -71.0589, 12)
	if got != want {
		t.Errorf("LatLongPointToPixelXY = %+v, expected %+v", got, want)
	}
}

func TestPixelXYToLatLong(t *testing.T) {
	m := NewMercator(256)

	tests := []struct {
		name     string
		pixel    PixelPoint
		level    uint
		expected GeoPoint
	}{
		{name: "Center", pixel: PixelPoint{256, 256}, level: 1, expected: GeoPoint{0, 0}},
		{name: "Left edge", pixel: PixelPoint{0, 256}, level: 1, expected: GeoPoint{0, -180}},
		{name: "Top left", pixel: PixelPoint{0, 0}, level: 1, expected: GeoPoint{85.0511287798, -180}},
		{name: "Bottom right", pixel: PixelPoint{512, 512}, level: 1, expected: GeoPoint{-85.0511287798, 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.PixelXYToLatLong(tt.pixel, tt.level)
			if math.Abs(got.Latitude-tt.expected.Latitude) > 1e-9 || math.Abs(got.Longitude-tt.expected.Longitude) > 1e-9 {
				t.Errorf("PixelXYToLatLong(%+v, %d) = %+v, expected %+v", tt.pixel, tt.level, got, tt.expected)
			}
		})
	}
}

func TestPixelXYToLatLongGarbageInput(t *testing.T) {
	m := NewMercator(256)

	// Pixels far off the map are not validated; latitude saturates
	north := m.PixelXYToLatLong(PixelPoint{0, -1e12}, 3)
	if math.Abs(north.Latitude-90) > 1e-9 {
		t.Errorf("far north pixel latitude = %f, expected 90", north.Latitude)
	}
	south := m.PixelXYToLatLong(PixelPoint{0, 1e12}, 3)
	if math.Abs(south.Latitude+90) > 1e-9 {
		t.Errorf("far south pixel latitude = %f, expected -90", south.Latitude)
	}

	nan := m.PixelXYToLatLong(PixelPoint{math.NaN(), math.NaN()}, 3)
	if !math.IsNaN(nan.Latitude) || !math.IsNaN(nan.Longitude) {
		t.Errorf("NaN pixel should give NaN position, got %+v", nan)
	}
}

func TestPixelRoundTrip(t *testing.T) {
	m := NewMercator(256)

	for level := uint(1); level <= 10; level++ {
		size := float64(m.MapSize(level))
		step := size / 17
		for x := 0.0; x < size; x += step {
			for y := 0.0; y < size; y += step {
				p := PixelPoint{x, y}
				g := m.PixelXYToLatLong(p, level)
				back := m.LatLongToPixelXY(g.Latitude, g.Longitude, level)
				if math.Abs(back.X-p.X) > 1 || math.Abs(back.Y-p.Y) > 1 {
					t.Fatalf("level %d: %+v -> %+v -> %+v", level, p, g, back)
				}
			}
		}
	}
}

func TestGeoRoundTrip(t *testing.T) {
	m := NewMercator(256)

	g := GeoPoint{Latitude: 42.3601, Longitude: -71.0589}
	p := m.LatLongToPixelXY(g.Latitude, g.Longitude, MaxLevelOfDetail)
	back := m.PixelXYToLatLong(p, MaxLevelOfDetail)

	// A level 23 pixel is ~1.4cm at this latitude
	if math.Abs(back.Latitude-g.Latitude) > 1e-7 || math.Abs(back.Longitude-g.Longitude) > 1e-7 {
		t.Errorf("round trip %+v -> %+v -> %+v", g, p, back)
	}
}

func TestPixelXYToTileXY(t *testing.T) {
	m := NewMercator(256)

	tests := []struct {
		pixel    PixelPoint
		expected TileIndex
	}{
		{PixelPoint{0, 0}, TileIndex{0, 0}},
		{PixelPoint{255.999, 255.999}, TileIndex{0, 0}},
		{PixelPoint{256, 0}, TileIndex{1, 0}},
		{PixelPoint{600, 1000}, TileIndex{2, 3}},
		{PixelPoint{-1, -1}, TileIndex{-1, -1}},
	}

	for _, tt := range tests {
		if got := m.PixelXYToTileXY(tt.pixel); got != tt.expected {
			t.Errorf("PixelXYToTileXY(%+v) = %+v, expected %+v", tt.pixel, got, tt.expected)
		}
	}
}

func TestPixelXYToTileXYAtLevel(t *testing.T) {
	m := NewMercator(256)

	tests := []struct {
		name     string
		pixel    PixelPoint
		level    uint
		expected TileIndex
	}{
		{name: "Whole world at level 0", pixel: PixelPoint{100, 200}, level: 0, expected: TileIndex{0, 0}},
		{name: "Far edge at level 1", pixel: PixelPoint{512, 512}, level: 1, expected: TileIndex{1, 1}},
		{name: "Past the edge", pixel: PixelPoint{5000, 5000}, level: 2, expected: TileIndex{3, 3}},
		{name: "Negative", pixel: PixelPoint{-10, -300}, level: 2, expected: TileIndex{0, 0}},
		{name: "Interior", pixel: PixelPoint{600, 300}, level: 2, expected: TileIndex{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.PixelXYToTileXYAtLevel(tt.pixel, tt.level); got != tt.expected {
				t.Errorf("PixelXYToTileXYAtLevel(%+v, %d) = %+v, expected %+v",
					tt.pixel, tt.level, got, tt.expected)
			}
		})
	}
}

func TestTileXYToPixelXY(t *testing.T) {
	m := NewMercator(256)

	if got := m.TileXYToPixelXY(TileIndex{2, 3}); got != (PixelPoint{512, 768}) {
		t.Errorf("TileXYToPixelXY({2, 3}) = %+v, expected {512, 768}", got)
	}

	// The tile's top-left corner contains the pixel
	pixels := []PixelPoint{{0, 0}, {255, 255}, {256, 256}, {1000.5, 77.25}, {65535, 1}}
	for _, p := range pixels {
		corner := m.TileXYToPixelXY(m.PixelXYToTileXY(p))
		if !(corner.X <= p.X && p.X < corner.X+256 && corner.Y <= p.Y && p.Y < corner.Y+256) {
			t.Errorf("pixel %+v not inside tile at %+v", p, corner)
		}
	}
}

func TestProjectionConcurrentUse(t *testing.T) {
	var proj Projection = NewMercator(256)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lat := float64(i*10 - 40)
				lon := float64(j%360 - 180)
				p := proj.LatLongToPixelXY(lat, lon, uint(j%20))
				proj.PixelXYToTileXYAtLevel(p, uint(j%20))
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkLatLongToPixelXY(b *testing.B) {
	m := NewMercator(256)
	coords := [][3]float64{
		{0, 0, 1},
		{MaxLatitude, 180, 10},
		{MinLatitude, -180, 15},
		{45.12345, -122.67890, 12},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range coords {
			m.LatLongToPixelXY(c[0], c[1], uint(c[2]))
		}
	}
}
