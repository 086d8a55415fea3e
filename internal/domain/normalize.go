package domain

import "github.com/couchcryptid/firms-osm-xref/internal/geo"

// DefaultFeatureBufferMeters is the buffer applied to point and line features.
const DefaultFeatureBufferMeters = 25.0

// ElementWay is the only OSM element type kept for matching.
const ElementWay = "way"

// NormalizeFeatures drops non-way elements and fills in each remaining
// feature's working geometry: points and lines are buffered by
// bufferMeters in Web Mercator and projected back, polygons are used as-is
// and unsupported types get a nil working geometry. The original geometry
// is left untouched.
func NormalizeFeatures(features []MapFeature, bufferMeters float64) []MapFeature {
	out := make([]MapFeature, 0, len(features))
	for _, f := range features {
		if f.ElementType != ElementWay {
			continue
		}
		f.Working = geo.BufferWGS84(f.Geometry, bufferMeters)
		out = append(out, f)
	}
	return out
}
