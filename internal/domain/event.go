package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Column names FIRMS rows must carry.
const (
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColAcqDate   = "acq_date"
	ColAcqTime   = "acq_time"
)

// RequiredColumns lists the FIRMS columns the pipeline cannot work without.
var RequiredColumns = []string{ColLatitude, ColLongitude, ColAcqDate, ColAcqTime}

// Detection is one raw FIRMS row before identity assignment.
type Detection struct {
	Source  string // sensor, e.g. "VIIRS_NOAA20_NRT"
	Lat     float64
	Lon     float64
	AcqDate string
	AcqTime string

	// Columns is the CSV header order; Attributes holds every column value
	// keyed by header name, including the four typed fields above.
	Columns    []string
	Attributes map[string]string
}

// Point returns the detection location as (lon, lat).
func (d Detection) Point() orb.Point {
	return orb.Point{d.Lon, d.Lat}
}

// FireEvent is a detection that survived the boundary filter and was given
// an identity. BBoxID is set by the grid clusterer.
type FireEvent struct {
	ID         string
	Lat        float64
	Lon        float64
	CapturedAt time.Time
	Source     string
	AcqDate    string
	AcqTime    string // zero-padded HHMM

	Columns    []string
	Attributes map[string]string

	BBoxID string
}

// Point returns the event location as (lon, lat).
func (e FireEvent) Point() orb.Point {
	return orb.Point{e.Lon, e.Lat}
}

// BoundingBox is an axis-aligned geographic rectangle in degrees.
type BoundingBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Contains reports whether (lat, lon) lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// GridCell is one populated grid bin and the buffered box used to query
// map features for it.
type GridCell struct {
	ID     string
	LatBin float64
	LonBin float64
	Box    BoundingBox
}

// Boundary is a resolved place polygon in EPSG:4326.
type Boundary struct {
	Name     string
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// MapFeature is an OSM element with its original geometry and the working
// geometry used for point-in-polygon matching.
type MapFeature struct {
	ElementType string // "way", "node" or "relation"
	OSMID       int64
	Tags        map[string]string

	// Geometry is the original geometry and is what gets written out.
	Geometry orb.Geometry
	// Working is the buffered (or pass-through) polygonal geometry used only
	// for the join. Nil means the feature cannot be matched.
	Working orb.Geometry
}

// Key returns the "<element_type>/<osmid>" identifier.
func (f MapFeature) Key() string {
	return f.ElementType + "/" + formatInt(f.OSMID)
}

// Association links one feature, within one grid cell, to the events that
// fall inside it.
type Association struct {
	BBoxID   string
	Feature  MapFeature
	EventIDs []string
}

// FetchResult is the outcome of fetching one sensor table for one day.
// Err is nil on success and wraps ErrFetchRetryExhausted when every attempt
// failed.
type FetchResult struct {
	Sensor   string
	Day      time.Time
	Rows     []Detection
	Attempts int
	Err      error
}

// DateSkip records a date dropped from the run and why.
type DateSkip struct {
	Day time.Time
	Err error
}
