package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/observability"
)

// Fetcher downloads one FIRMS sensor table for one day.
type Fetcher interface {
	Fetch(ctx context.Context, sensor string, day time.Time) domain.FetchResult
}

// AssociationSink receives the association rows of a finished run.
type AssociationSink interface {
	LoadBatch(ctx context.Context, runID string, rows []domain.Association) error
}

// Options controls what is fetched and how it is clustered.
type Options struct {
	Sensors             []string
	Tags                domain.TagFilter
	Cluster             domain.ClusterOptions
	FeatureBufferMeters float64
}

// Request names the place and the inclusive date range of a run.
type Request struct {
	Location string
	Start    string
	End      string
}

// Result is everything a successful run produces.
type Result struct {
	RunID    string
	Boundary domain.Boundary
	Events   []domain.FireEvent
	Cells    []domain.GridCell
	Table    domain.AssociationTable
	Skipped  []domain.DateSkip
}

// Pipeline orchestrates fetch, filter, cluster and association for one run.
type Pipeline struct {
	resolver domain.BoundaryResolver
	fetcher  Fetcher
	features domain.FeatureSource
	sink     AssociationSink
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu       sync.Mutex
	progress Progress
}

// New creates a Pipeline. sink may be nil.
func New(
	resolver domain.BoundaryResolver,
	fetcher Fetcher,
	features domain.FeatureSource,
	sink AssociationSink,
	opts Options,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	if len(opts.Tags) == 0 {
		opts.Tags = domain.DefaultTagFilter()
	}
	if opts.Cluster == (domain.ClusterOptions{}) {
		opts.Cluster = domain.DefaultClusterOptions()
	}
	if opts.FeatureBufferMeters <= 0 {
		opts.FeatureBufferMeters = domain.DefaultFeatureBufferMeters
	}
	return &Pipeline{
		resolver: resolver,
		fetcher:  fetcher,
		features: features,
		sink:     sink,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has finished, successfully or not.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.progress.Finished {
		return errors.New("run in progress")
	}
	return nil
}

// Run executes one complete run. Per-date and per-box failures are logged
// and skipped; everything else aborts the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result, err error) {
	res.RunID = uuid.NewString()
	logger := p.logger.With("run_id", res.RunID)
	p.resetProgress(res.RunID)

	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.metrics.PipelineRunning.Set(0)
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		p.metrics.Runs.WithLabelValues(outcome).Inc()
		p.finish(err)
	}()

	logger.Info("run started", "location", req.Location, "start", req.Start, "end", req.End)

	days, err := domain.ExpandDates(req.Start, req.End)
	if err != nil {
		return res, err
	}
	p.update(func(pr *Progress) { pr.Stage = StageResolve; pr.DatesTotal = len(days) })

	res.Boundary, err = p.resolver.Resolve(ctx, req.Location)
	if err != nil {
		return res, err
	}

	p.update(func(pr *Progress) { pr.Stage = StageFetch })
	rows, skipped, err := p.collectDetections(ctx, logger, days, res.Boundary)
	res.Skipped = skipped
	if err != nil {
		return res, err
	}

	events, err := domain.AssignIdentities(rows, domain.NewSequence())
	if err != nil {
		return res, err
	}
	p.metrics.EventsAssigned.Add(float64(len(events)))

	res.Events, res.Cells = domain.ClusterGrid(events, p.opts.Cluster)
	p.metrics.GridCells.Set(float64(len(res.Cells)))
	p.update(func(pr *Progress) {
		pr.Stage = StageFeatures
		pr.Events = len(res.Events)
		pr.CellsTotal = len(res.Cells)
	})
	logger.Info("events clustered", "events", len(res.Events), "bboxes", len(res.Cells))

	featuresByCell, err := p.gatherFeatures(ctx, logger, res.Cells)
	if err != nil {
		return res, err
	}

	p.update(func(pr *Progress) { pr.Stage = StageAssociate })
	res.Table, err = domain.Associate(res.Events, res.Cells, featuresByCell)
	if err != nil {
		return res, err
	}
	p.metrics.Associations.Set(float64(len(res.Table.Rows)))
	p.update(func(pr *Progress) { pr.Associations = len(res.Table.Rows) })

	logger.Info("run complete",
		"events", len(res.Events),
		"bboxes", len(res.Cells),
		"associations", len(res.Table.Rows),
		"dates_skipped", len(res.Skipped),
		"duration", time.Since(start),
	)
	return res, nil
}

// Publish hands the association rows of res to the sink, if one is set.
func (p *Pipeline) Publish(ctx context.Context, res Result) error {
	if p.sink == nil || len(res.Table.Rows) == 0 {
		return nil
	}
	if err := p.sink.LoadBatch(ctx, res.RunID, res.Table.Rows); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	p.metrics.AssociationsPublished.Add(float64(len(res.Table.Rows)))
	return nil
}
