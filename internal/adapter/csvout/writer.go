// Package csvout persists a run's results as three CSV files: the clustered
// fire events, the full feature association table and its reduced
// visualization view.
package csvout

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// Extra columns appended to the FIRMS table.
const (
	ColEventID    = "event_id"
	ColCapturedAt = "captured_at"
	ColBBoxID     = "bbox_id"
)

// CapturedAtFormat is how captured_at is written out.
const CapturedAtFormat = "2006-01-02 15:04:05"

// Paths are the three output files of a run.
type Paths struct {
	Firms string
	OSM   string
	Viz   string
}

// BaseName returns "{location}_{start}-{end}" with path separators in the
// location replaced.
func BaseName(location, start, end string) string {
	loc := strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(location))
	return fmt.Sprintf("%s_%s-%s", loc, start, end)
}

// FilePaths returns the output paths for base inside dir.
func FilePaths(dir, base string) Paths {
	return Paths{
		Firms: filepath.Join(dir, base+"_firms_data.csv"),
		OSM:   filepath.Join(dir, base+"_osm_data.csv"),
		Viz:   filepath.Join(dir, base+"_osm_data_viz.csv"),
	}
}

// Writer writes run results into a directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates dir if needed. Failure wraps domain.ErrDirectory.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty output directory", domain.ErrDirectory)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDirectory, dir, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteAll writes the three result files for base. Failure wraps
// domain.ErrPersistence.
func (w *Writer) WriteAll(base string, events []domain.FireEvent, table domain.AssociationTable) (Paths, error) {
	paths := FilePaths(w.dir, base)

	if err := writeFile(paths.Firms, func(out io.Writer) error { return WriteEvents(out, events) }); err != nil {
		return paths, err
	}
	if err := writeFile(paths.OSM, func(out io.Writer) error {
		return WriteAssociations(out, table, table.Columns())
	}); err != nil {
		return paths, err
	}
	if err := writeFile(paths.Viz, func(out io.Writer) error {
		return WriteAssociations(out, table, table.VisualizationColumns())
	}); err != nil {
		return paths, err
	}

	w.logger.Info("results written",
		"firms", paths.Firms,
		"osm", paths.OSM,
		"viz", paths.Viz,
		"events", len(events),
		"associations", len(table.Rows),
	)
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %w", domain.ErrPersistence, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrPersistence, path, err)
	}
	return nil
}

// EventColumns returns the FIRMS table header: the union of every event's
// source columns in first-seen order, then event_id, captured_at and bbox_id.
func EventColumns(events []domain.FireEvent) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, e := range events {
		for _, c := range e.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return append(cols, ColEventID, ColCapturedAt, ColBBoxID)
}

// WriteEvents writes the clustered FIRMS table. Columns a sensor does not
// report are left empty.
func WriteEvents(out io.Writer, events []domain.FireEvent) error {
	cols := EventColumns(events)
	cw := csv.NewWriter(out)
	if err := cw.Write(cols); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for _, e := range events {
		for i, c := range cols {
			switch c {
			case ColEventID:
				record[i] = e.ID
			case ColCapturedAt:
				record[i] = e.CapturedAt.Format(CapturedAtFormat)
			case ColBBoxID:
				record[i] = e.BBoxID
			default:
				record[i] = e.Attributes[c]
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssociations writes the selected columns of table. Geometry is
// written as WKT of the original feature geometry.
func WriteAssociations(out io.Writer, table domain.AssociationTable, cols []string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(cols); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for _, row := range table.Rows {
		for i, c := range cols {
			if c == domain.ColGeometry {
				record[i] = geometryWKT(row.Feature)
				continue
			}
			record[i] = row.Value(c)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func geometryWKT(f domain.MapFeature) string {
	if f.Geometry == nil {
		return ""
	}
	return wkt.MarshalString(f.Geometry)
}
