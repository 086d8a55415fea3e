package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

// A unit square around (lon 150..151, lat -34..-33) with a hole in the
// south-west quarter.
var testBoundary = Boundary{
	Name: "Testland",
	Geometry: orb.Polygon{
		{{150, -34}, {151, -34}, {151, -33}, {150, -33}, {150, -34}},
		{{150.1, -33.9}, {150.4, -33.9}, {150.4, -33.6}, {150.1, -33.6}, {150.1, -33.9}},
	},
}

func TestFilterByBoundary(t *testing.T) {
	rows := []Detection{
		detection(-33.5, 150.5, "2024-01-05", "0100"),  // inside
		detection(-32.0, 150.5, "2024-01-05", "0100"),  // north of boundary
		detection(-33.75, 150.25, "2024-01-05", "0100"), // in hole
		detection(-34.0, 150.5, "2024-01-05", "0100"),  // on southern edge
		detection(-33.2, 150.9, "2024-01-05", "0100"),  // inside
	}

	kept := FilterByBoundary(rows, testBoundary)

	assert.Len(t, kept, 3)
	assert.Equal(t, -33.5, kept[0].Lat)
	assert.Equal(t, -34.0, kept[1].Lat, "edge points intersect")
	assert.Equal(t, -33.2, kept[2].Lat)
}

func TestFilterByBoundary_RetainedIntersectDiscardedDoNot(t *testing.T) {
	var rows []Detection
	for lat := -34.5; lat <= -32.5; lat += 0.25 {
		for lon := 149.5; lon <= 151.5; lon += 0.25 {
			rows = append(rows, detection(lat, lon, "2024-01-05", "0100"))
		}
	}

	kept := FilterByBoundary(rows, testBoundary)
	keptSet := make(map[orb.Point]bool)
	for _, d := range kept {
		keptSet[d.Point()] = true
	}

	for _, d := range rows {
		inside := planarIntersects(testBoundary.Geometry.(orb.Polygon), d.Point())
		assert.Equal(t, inside, keptSet[d.Point()], "point %v", d.Point())
	}
}

func TestFilterByBoundary_MultiPolygon(t *testing.T) {
	b := Boundary{Geometry: orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		{{{10, 10}, {11, 10}, {11, 11}, {10, 11}, {10, 10}}},
	}}
	rows := []Detection{
		detection(0.5, 0.5, "2024-01-05", "0100"),
		detection(5, 5, "2024-01-05", "0100"),
		detection(10.5, 10.5, "2024-01-05", "0100"),
	}
	kept := FilterByBoundary(rows, b)
	assert.Len(t, kept, 2)
}

func TestFilterByBoundary_EmptyInputsAndNilGeometry(t *testing.T) {
	assert.Empty(t, FilterByBoundary(nil, testBoundary))
	assert.Empty(t, FilterByBoundary([]Detection{detection(0, 0, "2024-01-05", "0100")}, Boundary{}))
}

// planarIntersects is an independent oracle: ray casting on the outer ring,
// minus the hole, with boundary points counted as inside.
func planarIntersects(poly orb.Polygon, p orb.Point) bool {
	if onAnyRing(poly, p) {
		return true
	}
	if !rayCast(poly[0], p) {
		return false
	}
	for _, hole := range poly[1:] {
		if rayCast(hole, p) {
			return false
		}
	}
	return true
}

func onAnyRing(poly orb.Polygon, p orb.Point) bool {
	for _, r := range poly {
		for i := 0; i+1 < len(r); i++ {
			a, b := r[i], r[i+1]
			if (b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0]) == 0 &&
				p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
				p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1]) {
				return true
			}
		}
	}
	return false
}

func rayCast(r orb.Ring, p orb.Point) bool {
	in := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		if (r[i][1] > p[1]) != (r[j][1] > p[1]) &&
			p[0] < (r[j][0]-r[i][0])*(p[1]-r[i][1])/(r[j][1]-r[i][1])+r[i][0] {
			in = !in
		}
	}
	return in
}
