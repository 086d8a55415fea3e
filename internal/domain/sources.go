package domain

import "context"

// BoundaryResolver turns a free-text place description into a boundary.
type BoundaryResolver interface {
	// Resolve returns the place polygon or an error wrapping ErrResolution.
	Resolve(ctx context.Context, place string) (Boundary, error)
}

// FeatureSource fetches map features inside a bounding box.
type FeatureSource interface {
	// Features returns every element matching tags inside box, or an error
	// wrapping ErrNoFeatures when the provider has nothing for the box.
	Features(ctx context.Context, box BoundingBox, tags TagFilter) ([]MapFeature, error)
}

// TagFilter selects OSM features by tag. A key mapped to an empty slice
// matches any value of that key.
type TagFilter map[string][]string

// DefaultTagFilter returns the feature categories fires are matched against.
func DefaultTagFilter() TagFilter {
	return TagFilter{
		"building": nil,
		"landuse":  nil,
		"amenity":  nil,
		"leisure":  nil,
		"natural":  nil,
		"boundary": nil,
		"place":    nil,
		"military": nil,
		"man_made": nil,
	}
}
