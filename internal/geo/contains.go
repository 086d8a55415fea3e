package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Intersects reports whether p lies inside or on the boundary of a polygonal
// geometry, hole edges included. Non-polygonal geometries never intersect.
func Intersects(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return polygonIntersects(g, p)
	case orb.MultiPolygon:
		for _, poly := range g {
			if polygonIntersects(poly, p) {
				return true
			}
		}
	case orb.Bound:
		return g.Contains(p)
	case orb.Collection:
		for _, c := range g {
			if Intersects(c, p) {
				return true
			}
		}
	}
	return false
}

// Within reports whether p lies strictly inside a polygonal geometry. Points
// on an outer or hole boundary are not within. A MultiPolygon is treated as
// the union of its parts.
func Within(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return polygonWithin(g, p)
	case orb.MultiPolygon:
		for _, poly := range g {
			if polygonWithin(poly, p) {
				return true
			}
		}
	case orb.Collection:
		for _, c := range g {
			if Within(c, p) {
				return true
			}
		}
	}
	return false
}

func polygonIntersects(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !poly.Bound().Contains(p) {
		return false
	}
	for _, ring := range poly {
		if onRing(ring, p) {
			return true
		}
	}
	return planar.PolygonContains(poly, p)
}

func polygonWithin(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !poly.Bound().Contains(p) {
		return false
	}
	for _, ring := range poly {
		if onRing(ring, p) {
			return false
		}
	}
	return planar.PolygonContains(poly, p)
}

func onRing(r orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		if onSegment(r[i], r[i+1], p) {
			return true
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if cross != 0 {
		return false
	}
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}
