package domain

import (
	"sort"
	"strings"
)

// Fixed association table columns.
const (
	ColElementType = "element_type"
	ColOSMID       = "osmid"
	ColGeometry    = "geometry"
	ColEventIDs    = "event_ids"
)

// VizColumns is the allow-list for the reduced visualization table, in
// output order. Columns missing from the full table are skipped.
var VizColumns = []string{
	ColElementType,
	ColOSMID,
	"source",
	ColGeometry,
	"name",
	"landuse",
	"man_made",
	ColEventIDs,
}

// AssociationTable is the concatenated join result of every grid cell.
type AssociationTable struct {
	Rows []Association
	// TagColumns is the union of tag keys across rows, in first-seen order
	// with each row's keys sorted.
	TagColumns []string
}

// NewAssociationTable builds a table and its tag column set from rows.
func NewAssociationTable(rows []Association) AssociationTable {
	seen := make(map[string]bool)
	var tagCols []string
	for _, r := range rows {
		keys := make([]string, 0, len(r.Feature.Tags))
		for k := range r.Feature.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if seen[k] || isReservedColumn(k) {
				continue
			}
			seen[k] = true
			tagCols = append(tagCols, k)
		}
	}
	return AssociationTable{Rows: rows, TagColumns: tagCols}
}

// Columns returns the full table header.
func (t AssociationTable) Columns() []string {
	cols := make([]string, 0, len(t.TagColumns)+4)
	cols = append(cols, ColElementType, ColOSMID, ColGeometry)
	cols = append(cols, t.TagColumns...)
	return append(cols, ColEventIDs)
}

// VisualizationColumns intersects VizColumns with the full table header.
func (t AssociationTable) VisualizationColumns() []string {
	present := make(map[string]bool)
	for _, c := range t.Columns() {
		present[c] = true
	}
	var cols []string
	for _, c := range VizColumns {
		if present[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Value returns the raw cell value for non-geometry columns. Geometry and
// event_ids are left to the writer, which owns their encoding.
func (r Association) Value(col string) string {
	switch col {
	case ColElementType:
		return r.Feature.ElementType
	case ColOSMID:
		return formatInt(r.Feature.OSMID)
	case ColEventIDs:
		return FormatEventIDs(r.EventIDs)
	default:
		return r.Feature.Tags[col]
	}
}

// FormatEventIDs renders ids as a bracketed quoted list, e.g.
// "['EVENT_0001', 'EVENT_0002']".
func FormatEventIDs(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ParseEventIDs reverses FormatEventIDs.
func ParseEventIDs(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, strings.Trim(strings.TrimSpace(p), `'"`))
	}
	return ids
}

func isReservedColumn(k string) bool {
	switch k {
	case ColElementType, ColOSMID, ColGeometry, ColEventIDs:
		return true
	}
	return false
}
