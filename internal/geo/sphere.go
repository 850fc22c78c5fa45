package geo

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// meanEarthRadius is used for great-circle distances
const meanEarthRadius = 6371000.0

// Distance returns the great-circle distance between a and b in meters
func Distance(a, b GeoPoint) float64 {
	return float64(a.LatLng().Distance(b.LatLng())) * meanEarthRadius
}

// LatLng returns g as an s2.LatLng
func (g GeoPoint) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(g.Latitude, g.Longitude)
}

// S2Projection maps s2 points and lat/lngs through a Projection onto the unit
// square, x growing east and y growing south, (0,0) at the north-west corner.
// It has the method set of s2.Projection but cannot satisfy that interface,
// which is sealed to package s2.
type S2Projection struct {
	proj Projection
}

// NewS2Projection wraps proj. Normalized coordinates are computed at
// MaxLevelOfDetail so the result inherits the projection's rounding.
func NewS2Projection(proj Projection) *S2Projection {
	return &S2Projection{proj: proj}
}

func (p *S2Projection) Project(pt s2.Point) r2.Point {
	return p.FromLatLng(s2.LatLngFromPoint(pt))
}

func (p *S2Projection) Unproject(pt r2.Point) s2.Point {
	return s2.PointFromLatLng(p.ToLatLng(pt))
}

func (p *S2Projection) FromLatLng(ll s2.LatLng) r2.Point {
	size := float64(p.proj.MapSize(MaxLevelOfDetail))
	pixel := p.proj.LatLongToPixelXY(ll.Lat.Degrees(), ll.Lng.Degrees(), MaxLevelOfDetail)
	return r2.Point{X: pixel.X / size, Y: pixel.Y / size}
}

func (p *S2Projection) ToLatLng(pt r2.Point) s2.LatLng {
	size := float64(p.proj.MapSize(MaxLevelOfDetail))
	g := p.proj.PixelXYToLatLong(PixelPoint{X: pt.X * size, Y: pt.Y * size}, MaxLevelOfDetail)
	return s2.LatLng{
		Lat: s1.Angle(g.Latitude) * s1.Degree,
		Lng: s1.Angle(g.Longitude) * s1.Degree,
	}
}

// Interpolate returns the point a fraction f of the way from a to b
func (p *S2Projection) Interpolate(f float64, a, b r2.Point) r2.Point {
	return a.Mul(1 - f).Add(b.Mul(f))
}

// WrapDistance reports that x wraps around the antimeridian and y does not
func (p *S2Projection) WrapDistance() r2.Point {
	return r2.Point{X: 1, Y: 0}
}

// WrapDestination moves b by whole wraps so it is the closest copy to a
func (p *S2Projection) WrapDestination(a, b r2.Point) r2.Point {
	x := b.X
	if d := x - a.X; math.Abs(d) > 0.5 {
		x -= math.Round(d)
	}
	return r2.Point{X: x, Y: b.Y}
}
