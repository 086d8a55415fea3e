package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/firms-osm-xref/internal/adapter/csvout"
	"github.com/couchcryptid/firms-osm-xref/internal/adapter/firms"
	httpadapter "github.com/couchcryptid/firms-osm-xref/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/firms-osm-xref/internal/adapter/kafka"
	"github.com/couchcryptid/firms-osm-xref/internal/adapter/nominatim"
	"github.com/couchcryptid/firms-osm-xref/internal/adapter/overpass"
	"github.com/couchcryptid/firms-osm-xref/internal/config"
	"github.com/couchcryptid/firms-osm-xref/internal/credentials"
	"github.com/couchcryptid/firms-osm-xref/internal/observability"
	"github.com/couchcryptid/firms-osm-xref/internal/pipeline"
)

// newMetrics is replaced in tests, where the default registry is shared.
var newMetrics = observability.NewMetrics

type options struct {
	location string
	start    string
	end      string
	outDir   string
	apiKey   string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "firexref",
		Short: "Match FIRMS fire detections to OpenStreetMap features",
		Long: `firexref downloads FIRMS fire detections for a place and date range,
groups them into grid boxes, and writes which OpenStreetMap features each
detection falls inside. Missing flags are prompted for.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.location, "location", "", "place name to resolve, e.g. \"Blue Mountains, Australia\"")
	f.StringVar(&opts.start, "start", "", "first date, YYYY-MM-DD")
	f.StringVar(&opts.end, "end", "", "last date, YYYY-MM-DD")
	f.StringVar(&opts.outDir, "out", "", "directory for the output CSV files")
	f.StringVar(&opts.apiKey, "api-key", "", "FIRMS API key (overrides FIRMS_API_KEY and the stored key)")

	return cmd
}

func run(parent context.Context, opts options, p *prompter) error {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := newMetrics()

	if opts.apiKey == "" {
		opts.apiKey = cfg.FIRMSAPIKey
	}
	apiKey, err := resolveAPIKey(opts.apiKey, credentials.NewStore(cfg.CredentialsPath), p, logger)
	if err != nil {
		logger.Error("failed to get api key", "error", err)
		return err
	}

	if err := fillMissing(&opts, p); err != nil {
		logger.Error("failed to read input", "error", err)
		return err
	}

	writer, err := csvout.NewWriter(opts.outDir, logger)
	if err != nil {
		logger.Error("failed to prepare output directory", "error", err)
		return err
	}

	var sink pipeline.AssociationSink
	if cfg.KafkaEnabled() {
		kw := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := kw.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = kw
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	fetcher := firms.NewClient(firms.Options{
		BaseURL:   cfg.FIRMSBaseURL,
		APIKey:    apiKey,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FIRMSTimeout,
		Attempts:  cfg.FIRMSRetryAttempts,
		Delay:     cfg.FIRMSRetryDelay,
	}, clockwork.NewRealClock(), metrics, logger)
	resolver := nominatim.NewClient(cfg.NominatimBaseURL, cfg.UserAgent, cfg.NominatimTimeout, logger)
	source := overpass.NewClient(cfg.OverpassBaseURL, cfg.UserAgent, cfg.OverpassTimeout, logger)

	pl := pipeline.New(resolver, fetcher, source, sink, pipeline.Options{
		Sensors:             cfg.FIRMSSensors,
		Tags:                cfg.Tags,
		Cluster:             cfg.ClusterOptions(),
		FeatureBufferMeters: cfg.FeatureBufferMeters,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, pl, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	res, err := pl.Run(ctx, pipeline.Request{Location: opts.location, Start: opts.start, End: opts.end})
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	paths, err := writer.WriteAll(csvout.BaseName(opts.location, opts.start, opts.end), res.Events, res.Table)
	if err != nil {
		logger.Error("failed to save results", "error", err)
		return err
	}

	if err := pl.Publish(ctx, res); err != nil {
		logger.Error("failed to publish associations", "error", err)
		return err
	}

	fmt.Fprintf(p.out, "wrote %s\nwrote %s\nwrote %s\n", paths.Firms, paths.OSM, paths.Viz)
	return nil
}

// fillMissing prompts for any option not given as a flag, in the order
// location, start, end, output directory.
func fillMissing(opts *options, p *prompter) error {
	var err error
	if opts.location == "" {
		if opts.location, err = p.text("location: "); err != nil {
			return err
		}
	}
	if opts.start == "" {
		if opts.start, err = p.date("start_date (as YYYY-MM-DD): "); err != nil {
			return err
		}
	}
	if opts.end == "" {
		if opts.end, err = p.date("end_date (as YYYY-MM-DD): "); err != nil {
			return err
		}
	}
	if opts.outDir == "" {
		if opts.outDir, err = p.text("directory path for output data: "); err != nil {
			return err
		}
	}
	return nil
}
