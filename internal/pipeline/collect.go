package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/geo"
)

// collectDetections fetches every sensor for every day, dropping a day when
// any of its sensors fails, and keeps the rows inside boundary. Row order is
// day-major, then sensor order, then file order.
func (p *Pipeline) collectDetections(ctx context.Context, logger *slog.Logger, days []time.Time, boundary domain.Boundary) ([]domain.Detection, []domain.DateSkip, error) {
	var (
		kept    []domain.Detection
		skipped []domain.DateSkip
	)

	for _, day := range days {
		date := day.Format(domain.DateLayout)

		var dayRows []domain.Detection
		var failed error
		for _, sensor := range p.opts.Sensors {
			res := p.fetcher.Fetch(ctx, sensor, day)
			if ctx.Err() != nil {
				return nil, skipped, fmt.Errorf("fetch firms data: %w", ctx.Err())
			}
			if res.Err != nil {
				failed = res.Err
				break
			}
			logger.Debug("firms table fetched", "date", date, "sensor", sensor, "rows", len(res.Rows), "attempt", res.Attempts)
			dayRows = append(dayRows, res.Rows...)
		}

		if failed != nil {
			logger.Warn("skipping date", "date", date, "error", failed)
			p.metrics.DatesSkipped.Inc()
			skipped = append(skipped, domain.DateSkip{Day: day, Err: failed})
			p.update(func(pr *Progress) { pr.DatesDone++; pr.DatesSkipped++ })
			continue
		}

		inside := domain.FilterByBoundary(dayRows, boundary)
		p.metrics.DetectionsFetched.Add(float64(len(dayRows)))
		p.metrics.DetectionsKept.Add(float64(len(inside)))
		logger.Info("date collected", "date", date, "fetched", len(dayRows), "kept", len(inside))

		kept = append(kept, inside...)
		p.update(func(pr *Progress) { pr.DatesDone++; pr.Detections += len(inside) })
	}

	if len(kept) == 0 {
		return nil, skipped, fmt.Errorf("%w (%d of %d dates skipped)", domain.ErrNoData, len(skipped), len(days))
	}
	return kept, skipped, nil
}

// gatherFeatures queries and normalizes map features for each cell. A box
// that fails for any reason other than cancellation is logged and left out.
func (p *Pipeline) gatherFeatures(ctx context.Context, logger *slog.Logger, cells []domain.GridCell) (map[string][]domain.MapFeature, error) {
	out := make(map[string][]domain.MapFeature, len(cells))

	for _, cell := range cells {
		features, err := p.features.Features(ctx, cell.Box, p.opts.Tags)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch map features: %w", ctx.Err())
		}
		p.update(func(pr *Progress) { pr.CellsDone++ })

		switch {
		case errors.Is(err, domain.ErrNoFeatures):
			p.metrics.BBoxQueries.WithLabelValues("empty").Inc()
			logger.Info("no map features for bbox", "bbox_id", cell.ID)
			continue
		case err != nil:
			p.metrics.BBoxQueries.WithLabelValues("error").Inc()
			logger.Warn("map feature query failed, skipping bbox", "bbox_id", cell.ID, "error", err)
			continue
		}
		p.metrics.BBoxQueries.WithLabelValues("success").Inc()

		normalized := domain.NormalizeFeatures(features, p.opts.FeatureBufferMeters)
		for _, f := range normalized {
			p.metrics.FeaturesNormalized.WithLabelValues(string(geo.Classify(f.Geometry))).Inc()
		}
		logger.Debug("bbox features normalized", "bbox_id", cell.ID, "fetched", len(features), "ways", len(normalized))
		out[cell.ID] = normalized
	}
	return out, nil
}
