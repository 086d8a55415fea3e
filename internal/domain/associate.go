package domain

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/firms-osm-xref/internal/geo"
)

// pointTolerance is the half-width of the search rectangle built around an
// event point when querying the feature index.
const pointTolerance = 1e-9

// indexedFeature adapts a normalized feature to rtreego.Spatial.
type indexedFeature struct {
	pos  int
	rect rtreego.Rect
}

func (f *indexedFeature) Bounds() rtreego.Rect { return f.rect }

// Associate joins each cell's events against that cell's normalized
// features. Only events lying inside the cell's box take part. An event is
// matched when its point lies strictly within a feature's working geometry. Event IDs are collected per feature in event
// order; features without events are dropped and cells are concatenated in
// the order given. An empty result fails with ErrNoMatches.
func Associate(events []FireEvent, cells []GridCell, featuresByCell map[string][]MapFeature) (AssociationTable, error) {
	byCell := EventsByCell(events)

	var rows []Association
	for _, cell := range cells {
		features := featuresByCell[cell.ID]
		if len(features) == 0 {
			continue
		}
		rows = append(rows, associateCell(cell, byCell[cell.ID], features)...)
	}

	if len(rows) == 0 {
		return AssociationTable{}, fmt.Errorf("%w across %d bounding boxes", ErrNoMatches, len(cells))
	}
	return NewAssociationTable(rows), nil
}

func associateCell(cell GridCell, events []FireEvent, features []MapFeature) []Association {
	inside := make([]FireEvent, 0, len(events))
	for _, e := range events {
		if cell.Box.Contains(e.Lat, e.Lon) {
			inside = append(inside, e)
		}
	}
	if len(inside) == 0 {
		return nil
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range features {
		if f.Working == nil {
			continue
		}
		rect, err := boundRect(f.Working.Bound())
		if err != nil {
			continue
		}
		tree.Insert(&indexedFeature{pos: i, rect: rect})
	}
	if tree.Size() == 0 {
		return nil
	}

	matches := make(map[int][]string)
	for _, e := range inside {
		p := e.Point()
		for _, hit := range tree.SearchIntersect(rtreego.Point{p[0], p[1]}.ToRect(pointTolerance)) {
			pos := hit.(*indexedFeature).pos
			if geo.Within(features[pos].Working, p) {
				matches[pos] = append(matches[pos], e.ID)
			}
		}
	}

	positions := make([]int, 0, len(matches))
	for pos := range matches {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	out := make([]Association, 0, len(positions))
	for _, pos := range positions {
		f := features[pos]
		// Only the original geometry leaves the join.
		f.Working = nil
		out = append(out, Association{
			BBoxID:   cell.ID,
			Feature:  f,
			EventIDs: matches[pos],
		})
	}
	return out
}

func boundRect(b orb.Bound) (rtreego.Rect, error) {
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	return rtreego.NewRect(
		rtreego.Point{b.Min[0], b.Min[1]},
		[]float64{max(width, pointTolerance), max(height, pointTolerance)},
	)
}
