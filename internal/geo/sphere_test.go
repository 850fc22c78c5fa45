package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		a, b      GeoPoint
		expected  float64 // meters, approximate
		tolerance float64
	}{
		{
			name:      "Same point",
			a:         GeoPoint{42.3601, -71.0589},
			b:         GeoPoint{42.3601, -71.0589},
			expected:  0,
			tolerance: 1,
		},
		{
			name:      "Boston Common to Harvard Square",
			a:         GeoPoint{42.3601, -71.0589},
			b:         GeoPoint{42.3736, -71.1097},
			expected:  4420,
			tolerance: 100,
		},
		{
			name:      "Short distance",
			a:         GeoPoint{42.3601, -71.0589},
			b:         GeoPoint{42.3602, -71.0589}, // ~11 meters north
			expected:  11,
			tolerance: 1,
		},
		{
			name:      "Quarter of the equator",
			a:         GeoPoint{0, 0},
			b:         GeoPoint{0, 90},
			expected:  math.Pi / 2 * meanEarthRadius,
			tolerance: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Distance(tt.a, tt.b)
			if math.Abs(d-tt.expected) > tt.tolerance {
				t.Errorf("Distance(%+v, %+v) = %f, expected ~%f", tt.a, tt.b, d, tt.expected)
			}
		})
	}
}

func TestS2ProjectionFromLatLng(t *testing.T) {
	p := NewS2Projection(NewMercator(256))

	center := p.FromLatLng(s2.LatLngFromDegrees(0, 0))
	if math.Abs(center.X-0.5) > 1e-12 || math.Abs(center.Y-0.5) > 1e-12 {
		t.Errorf("FromLatLng(0, 0) = %v, expected (0.5, 0.5)", center)
	}

	// Clamped at the pole
	north := p.FromLatLng(s2.LatLngFromDegrees(90, -180))
	if north.X != 0 || north.Y > 1e-9 {
		t.Errorf("FromLatLng(90, -180) = %v, expected (0, 0)", north)
	}
}

func TestS2ProjectionRoundTrip(t *testing.T) {
	p := NewS2Projection(NewMercator(256))

	ll := s2.LatLngFromDegrees(42.3601, -71.0589)
	back := p.ToLatLng(p.FromLatLng(ll))
	if math.Abs(back.Lat.Degrees()-42.3601) > 1e-7 || math.Abs(back.Lng.Degrees()+71.0589) > 1e-7 {
		t.Errorf("round trip of %v gave %v", ll, back)
	}

	pt := s2.PointFromLatLng(ll)
	unprojected := p.Unproject(p.Project(pt))
	if unprojected.Distance(pt).Degrees() > 1e-7 {
		t.Errorf("Project/Unproject moved the point by %v", unprojected.Distance(pt))
	}
}

func TestS2ProjectionWrapping(t *testing.T) {
	p := NewS2Projection(NewMercator(256))

	if p.WrapDistance() != (r2.Point{X: 1, Y: 0}) {
		t.Errorf("WrapDistance() = %v, expected (1, 0)", p.WrapDistance())
	}

	got := p.WrapDestination(r2.Point{X: 0.9, Y: 0.2}, r2.Point{X: 0.1, Y: 0.3})
	if math.Abs(got.X-1.1) > 1e-12 || got.Y != 0.3 {
		t.Errorf("WrapDestination = %v, expected (1.1, 0.3)", got)
	}

	same := p.WrapDestination(r2.Point{X: 0.4, Y: 0}, r2.Point{X: 0.6, Y: 0})
	if same.X != 0.6 {
		t.Errorf("WrapDestination should not wrap nearby points, got %v", same)
	}

	mid := p.Interpolate(0.5, r2.Point{X: 0, Y: 0}, r2.Point{X: 1, Y: 1})
	if mid != (r2.Point{X: 0.5, Y: 0.5}) {
		t.Errorf("Interpolate(0.5) = %v, expected (0.5, 0.5)", mid)
	}
}

func TestS2ProjectionMatchesS2Mercator(t *testing.T) {
	p := NewS2Projection(NewMercator(256))

	// s2's mercator with maxX 0.5 spans [-0.5, 0.5] with y growing north
	ref := s2.NewMercatorProjection(0.5)

	for _, ll := range []s2.LatLng{
		s2.LatLngFromDegrees(0, 0),
		s2.LatLngFromDegrees(42.3601, -71.0589),
		s2.LatLngFromDegrees(-33.8688, 151.2093),
		s2.LatLngFromDegrees(80, 179),
	} {
		got := p.FromLatLng(ll)
		want := ref.FromLatLng(ll)
		if math.Abs(got.X-(want.X+0.5)) > 1e-12 || math.Abs(got.Y-(0.5-want.Y)) > 1e-12 {
			t.Errorf("FromLatLng(%v) = %v, s2 mercator gives %v", ll, got, want)
		}
	}
}
