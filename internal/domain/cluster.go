package domain

import (
	"fmt"
	"math"
)

// DegreesPerKm is the constant-latitude approximation 1 km = 1/111 degree.
const DegreesPerKm = 1.0 / 111.0

// Default clustering parameters.
const (
	DefaultBBoxBufferMeters = 3000.0
	DefaultGridSizeKm       = 5.0
)

// ClusterOptions controls grid size and the margin added around each cell.
type ClusterOptions struct {
	BufferMeters float64
	GridSizeKm   float64
}

// DefaultClusterOptions returns the 3 km buffer / 5 km grid defaults.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{BufferMeters: DefaultBBoxBufferMeters, GridSizeKm: DefaultGridSizeKm}
}

// BufferDegrees converts the buffer distance to degrees.
func (o ClusterOptions) BufferDegrees() float64 {
	return o.BufferMeters / 1000 * DegreesPerKm
}

// GridDegrees converts the grid size to degrees.
func (o ClusterOptions) GridDegrees() float64 {
	return o.GridSizeKm * DegreesPerKm
}

type binKey struct {
	lat, lon float64
}

// ClusterGrid assigns every event to a fixed-size grid cell and returns the
// tagged events alongside one cell per populated bin. Cell IDs follow the
// order in which bins are first seen in events; the bins themselves do not
// depend on order.
func ClusterGrid(events []FireEvent, opts ClusterOptions) ([]FireEvent, []GridCell) {
	gridDeg := opts.GridDegrees()
	bufferDeg := opts.BufferDegrees()

	tagged := make([]FireEvent, len(events))
	index := make(map[binKey]int)
	var cells []GridCell

	for i, e := range events {
		key := binKey{
			lat: Bin(e.Lat, gridDeg),
			lon: Bin(e.Lon, gridDeg),
		}
		n, ok := index[key]
		if !ok {
			n = len(cells)
			index[key] = n
			cells = append(cells, GridCell{
				ID:     fmt.Sprintf("bbox_%05d", n),
				LatBin: key.lat,
				LonBin: key.lon,
				Box: BoundingBox{
					North: key.lat + gridDeg + bufferDeg,
					South: key.lat - bufferDeg,
					East:  key.lon + gridDeg + bufferDeg,
					West:  key.lon - bufferDeg,
				},
			})
		}
		e.BBoxID = cells[n].ID
		tagged[i] = e
	}
	return tagged, cells
}

// Bin returns the origin of the grid bin containing v.
func Bin(v, size float64) float64 {
	return math.Floor(v/size) * size
}

// EventsByCell groups events by BBoxID, preserving event order.
func EventsByCell(events []FireEvent) map[string][]FireEvent {
	out := make(map[string][]FireEvent)
	for _, e := range events {
		out[e.BBoxID] = append(out[e.BBoxID], e)
	}
	return out
}
