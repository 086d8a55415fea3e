package domain

import "github.com/couchcryptid/firms-osm-xref/internal/geo"

// FilterByBoundary keeps the detections whose (lon, lat) point intersects
// the boundary geometry, boundary edges included. Order is preserved and
// the result may be empty. Detections carry only their own attributes, so
// nothing from the boundary leaks into the output rows.
func FilterByBoundary(rows []Detection, boundary Boundary) []Detection {
	if boundary.Geometry == nil {
		return nil
	}
	bound := boundary.Geometry.Bound()

	kept := make([]Detection, 0, len(rows))
	for _, d := range rows {
		p := d.Point()
		if !bound.Contains(p) {
			continue
		}
		if geo.Intersects(boundary.Geometry, p) {
			kept = append(kept, d)
		}
	}
	return kept
}
