// Package geo holds the planar geometry operations the pipeline needs on top
// of orb: metric buffering of non-area geometries and strict/inclusive
// point-in-polygon predicates.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CircleSegments is the number of vertices used to approximate a full circle.
const CircleSegments = 32

// Kind classifies a geometry for normalization.
type Kind string

const (
	KindPoint       Kind = "point"
	KindLine        Kind = "line"
	KindPolygon     Kind = "polygon"
	KindUnsupported Kind = "unsupported"
)

// Classify reports how a geometry is treated during normalization.
func Classify(g orb.Geometry) Kind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint
	case orb.LineString, orb.MultiLineString:
		return KindLine
	case orb.Polygon, orb.MultiPolygon:
		return KindPolygon
	default:
		return KindUnsupported
	}
}

// ToMercator returns a copy of g projected from EPSG:4326 to EPSG:3857.
func ToMercator(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), project.WGS84.ToMercator)
}

// ToWGS84 returns a copy of g projected from EPSG:3857 to EPSG:4326.
func ToWGS84(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84)
}

// BufferWGS84 returns the working geometry for a WGS-84 geometry: points and
// lines are buffered by meters in Web Mercator and projected back, polygons
// are returned unchanged, and anything else yields nil.
func BufferWGS84(g orb.Geometry, meters float64) orb.Geometry {
	switch Classify(g) {
	case KindPolygon:
		return g
	case KindPoint, KindLine:
		return ToWGS84(Buffer(ToMercator(g), meters))
	default:
		return nil
	}
}

// Buffer expands a point or line geometry in a metric plane by distance d.
// A point becomes a circle polygon; a line becomes a MultiPolygon of
// per-segment capsules whose union is the buffered line. Polygons are
// returned as-is and unsupported types yield nil.
func Buffer(g orb.Geometry, d float64) orb.Geometry {
	if d <= 0 {
		return nil
	}
	switch g := g.(type) {
	case orb.Point:
		return circle(g, d)
	case orb.MultiPoint:
		mp := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			mp = append(mp, circle(p, d))
		}
		return mp
	case orb.LineString:
		return bufferLine(g, d)
	case orb.MultiLineString:
		var mp orb.MultiPolygon
		for _, ls := range g {
			mp = append(mp, bufferLine(ls, d)...)
		}
		return mp
	case orb.Polygon, orb.MultiPolygon:
		return g
	default:
		return nil
	}
}

func circle(c orb.Point, r float64) orb.Polygon {
	ring := make(orb.Ring, 0, CircleSegments+1)
	for i := 0; i < CircleSegments; i++ {
		a := 2 * math.Pi * float64(i) / CircleSegments
		ring = append(ring, orb.Point{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func bufferLine(ls orb.LineString, d float64) orb.MultiPolygon {
	switch len(ls) {
	case 0:
		return nil
	case 1:
		return orb.MultiPolygon{circle(ls[0], d)}
	}

	mp := make(orb.MultiPolygon, 0, len(ls)-1)
	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		if a.Equal(b) {
			mp = append(mp, circle(a, d))
			continue
		}
		mp = append(mp, capsule(a, b, d))
	}
	return mp
}

// capsule is the Minkowski sum of segment ab and a disc of radius d:
// a rectangle along the segment with a half circle at each end.
func capsule(a, b orb.Point, d float64) orb.Polygon {
	heading := math.Atan2(b[1]-a[1], b[0]-a[0])
	half := CircleSegments / 2

	ring := make(orb.Ring, 0, 2*(half+1)+1)
	// Half circle around b, from heading-90° to heading+90°.
	for i := 0; i <= half; i++ {
		t := heading - math.Pi/2 + math.Pi*float64(i)/float64(half)
		ring = append(ring, orb.Point{b[0] + d*math.Cos(t), b[1] + d*math.Sin(t)})
	}
	// Half circle around a, from heading+90° to heading+270°.
	for i := 0; i <= half; i++ {
		t := heading + math.Pi/2 + math.Pi*float64(i)/float64(half)
		ring = append(ring, orb.Point{a[0] + d*math.Cos(t), a[1] + d*math.Sin(t)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
