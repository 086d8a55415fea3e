// Command validate re-reads the three CSV files written by firexref for one
// run and checks them against each other: event identities, bbox ids,
// captured_at timestamps, association geometry and the visualization subset.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir out \
//	  -location "Blue Mountains" \
//	  -start 2024-01-05 -end 2024-01-07
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/couchcryptid/firms-osm-xref/internal/adapter/csvout"
	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/geo"
)

var (
	eventIDPattern = regexp.MustCompile(`^EVENT_\d{4,}$`)
	bboxIDPattern  = regexp.MustCompile(`^bbox_\d{5,}$`)
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "output directory of the run")
	location := flag.String("location", "", "location the run was made for")
	start := flag.String("start", "", "start date of the run, YYYY-MM-DD")
	end := flag.String("end", "", "end date of the run, YYYY-MM-DD")
	flag.Parse()

	if *dir == "" || *location == "" || *start == "" || *end == "" {
		flag.Usage()
		os.Exit(1)
	}

	paths := csvout.FilePaths(*dir, csvout.BaseName(*location, *start, *end))
	if code := run(paths, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(paths csvout.Paths, out io.Writer) int {
	fmt.Fprintln(out, "=== FIRMS x OSM Output Validation ===")
	fmt.Fprintln(out)

	firms, err := csvout.ReadTable(paths.Firms)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load FIRMS table: %v\n", err)
		return 1
	}
	full, err := csvout.ReadTable(paths.OSM)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load OSM table: %v\n", err)
		return 1
	}
	viz, err := csvout.ReadTable(paths.Viz)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load visualization table: %v\n", err)
		return 1
	}

	events := indexEvents(firms)

	phases := []*phase{
		validateEvents(firms),
		validateAssociations(full, events),
		validateVisualization(viz, full),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d FIRMS events, %d associations, %d visualization rows\n",
		len(firms.Rows), len(full.Rows), len(viz.Rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// eventRef is what the association checks need to know about one event.
type eventRef struct {
	bboxID string
	point  orb.Point
	ok     bool // coordinates parsed
}

func indexEvents(t csvout.Table) map[string]eventRef {
	idx := make(map[string]eventRef, len(t.Rows))
	for _, row := range t.Rows {
		lat, latErr := strconv.ParseFloat(row.Fields[domain.ColLatitude], 64)
		lon, lonErr := strconv.ParseFloat(row.Fields[domain.ColLongitude], 64)
		idx[row.Fields[csvout.ColEventID]] = eventRef{
			bboxID: row.Fields[csvout.ColBBoxID],
			point:  orb.Point{lon, lat},
			ok:     latErr == nil && lonErr == nil,
		}
	}
	return idx
}

// ── Phase 1: FIRMS events ──
// Every detection has a unique identity, a bbox and a parseable capture time.

func validateEvents(t csvout.Table) *phase {
	p := &phase{name: "Phase 1: FIRMS Events"}

	n := len(t.Header)
	if n < 3 || !slices.Equal(t.Header[n-3:], []string{csvout.ColEventID, csvout.ColCapturedAt, csvout.ColBBoxID}) {
		p.errorf("header must end with %s, %s, %s: got %v", csvout.ColEventID, csvout.ColCapturedAt, csvout.ColBBoxID, t.Header)
	}
	for _, col := range domain.RequiredColumns {
		if !slices.Contains(t.Header, col) {
			p.errorf("header missing required column %q", col)
		}
	}
	if len(t.Rows) == 0 {
		p.errorf("no event rows")
	}

	seen := make(map[string]int)
	for _, row := range t.Rows {
		checkEventRow(p, row, seen)
	}
	return p
}

func checkEventRow(p *phase, row csvout.Row, seen map[string]int) {
	id := row.Fields[csvout.ColEventID]
	switch {
	case !eventIDPattern.MatchString(id):
		p.errorf("line %d: malformed event_id %q", row.Line, id)
	case seen[id] != 0:
		p.errorf("line %d: event_id %s already used on line %d", row.Line, id, seen[id])
	default:
		seen[id] = row.Line
	}

	if bbox := row.Fields[csvout.ColBBoxID]; !bboxIDPattern.MatchString(bbox) {
		p.errorf("line %d (%s): malformed bbox_id %q", row.Line, id, bbox)
	}

	acqTime := row.Fields[domain.ColAcqTime]
	if len(acqTime) != 4 {
		p.errorf("line %d (%s): acq_time %q is not zero-padded HHMM", row.Line, id, acqTime)
	}

	captured, err := time.Parse(csvout.CapturedAtFormat, row.Fields[csvout.ColCapturedAt])
	if err != nil {
		p.errorf("line %d (%s): captured_at: %v", row.Line, id, err)
		return
	}
	want, err := domain.ParseCapturedAt(row.Fields[domain.ColAcqDate], acqTime)
	if err != nil {
		p.errorf("line %d (%s): %v", row.Line, id, err)
		return
	}
	if !captured.Equal(want) {
		p.errorf("line %d (%s): captured_at %s does not match acq_date/acq_time %s",
			row.Line, id, captured.Format(csvout.CapturedAtFormat), want.Format(csvout.CapturedAtFormat))
	}

	lat, latErr := strconv.ParseFloat(row.Fields[domain.ColLatitude], 64)
	lon, lonErr := strconv.ParseFloat(row.Fields[domain.ColLongitude], 64)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		p.errorf("line %d (%s): invalid coordinates (%q, %q)", row.Line, id,
			row.Fields[domain.ColLatitude], row.Fields[domain.ColLongitude])
	}
}

// ── Phase 2: Associations ──
// Every association references known events from a single bbox, and
// polygon features actually contain those events.

func validateAssociations(t csvout.Table, events map[string]eventRef) *phase {
	p := &phase{name: "Phase 2: OSM Associations"}

	n := len(t.Header)
	if n < 4 ||
		!slices.Equal(t.Header[:3], []string{domain.ColElementType, domain.ColOSMID, domain.ColGeometry}) ||
		t.Header[n-1] != domain.ColEventIDs {
		p.errorf("unexpected header %v", t.Header)
	}

	for _, row := range t.Rows {
		checkAssociationRow(p, row, events)
	}
	return p
}

func checkAssociationRow(p *phase, row csvout.Row, events map[string]eventRef) {
	key := row.Fields[domain.ColElementType] + "/" + row.Fields[domain.ColOSMID]

	if et := row.Fields[domain.ColElementType]; et != domain.ElementWay {
		p.errorf("line %d (%s): element_type %q, want %q", row.Line, key, et, domain.ElementWay)
	}
	if _, err := strconv.ParseInt(row.Fields[domain.ColOSMID], 10, 64); err != nil {
		p.errorf("line %d (%s): osmid is not an integer", row.Line, key)
	}

	g, err := wkt.Unmarshal(row.Fields[domain.ColGeometry])
	if err != nil {
		p.errorf("line %d (%s): geometry: %v", row.Line, key, err)
	}

	ids := domain.ParseEventIDs(row.Fields[domain.ColEventIDs])
	if len(ids) == 0 {
		p.errorf("line %d (%s): no event ids", row.Line, key)
		return
	}

	bbox := ""
	for _, id := range ids {
		ev, ok := events[id]
		if !ok {
			p.errorf("line %d (%s): event %s not in FIRMS table", row.Line, key, id)
			continue
		}
		if bbox == "" {
			bbox = ev.bboxID
		} else if ev.bboxID != bbox {
			p.errorf("line %d (%s): events span bboxes %s and %s", row.Line, key, bbox, ev.bboxID)
		}
		if !ev.ok || g == nil {
			continue
		}
		if geo.Classify(g) == geo.KindPolygon && !geo.Intersects(g, ev.point) {
			p.errorf("line %d (%s): event %s at %v is outside the feature polygon", row.Line, key, id, ev.point)
		}
	}
}

// ── Phase 3: Visualization subset ──
// The reduced table is a column subset of the full table, row for row.

func validateVisualization(viz, full csvout.Table) *phase {
	p := &phase{name: "Phase 3: Visualization Subset"}

	for _, col := range viz.Header {
		if !slices.Contains(domain.VizColumns, col) {
			p.errorf("column %q is not a visualization column", col)
		}
		if !slices.Contains(full.Header, col) {
			p.errorf("column %q missing from full table", col)
		}
	}
	for _, col := range domain.VizColumns {
		if slices.Contains(full.Header, col) && !slices.Contains(viz.Header, col) {
			p.errorf("column %q present in full table but dropped", col)
		}
	}

	if len(viz.Rows) != len(full.Rows) {
		p.errorf("row count: full table has %d, visualization has %d", len(full.Rows), len(viz.Rows))
		return p
	}
	for i, row := range viz.Rows {
		for _, col := range viz.Header {
			if got, want := row.Fields[col], full.Rows[i].Fields[col]; got != want {
				p.errorf("line %d: column %q: full=%q, visualization=%q", row.Line, col, want, got)
			}
		}
	}
	return p
}
