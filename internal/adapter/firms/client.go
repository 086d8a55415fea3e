// Package firms downloads per-day FIRMS area CSV tables with bounded,
// fixed-delay retry.
package firms

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/observability"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Attempts  int
	Delay     time.Duration
}

// Client fetches FIRMS area tables for the whole world, one sensor and one
// day at a time.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	attempts   int
	delay      time.Duration
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a FIRMS client. clock drives the delay between attempts.
func NewClient(opts Options, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		userAgent:  opts.UserAgent,
		attempts:   attempts,
		delay:      opts.Delay,
		httpClient: &http.Client{Timeout: opts.Timeout},
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// URL returns the area CSV endpoint for sensor and day.
func (c *Client) URL(sensor string, day time.Time) string {
	return fmt.Sprintf("%s/api/area/csv/%s/%s/world/1/%s",
		c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(sensor), day.Format(domain.DateLayout))
}

// Fetch downloads the sensor table for day, retrying up to the configured
// number of attempts with a fixed delay in between.
func (c *Client) Fetch(ctx context.Context, sensor string, day time.Time) domain.FetchResult {
	res := domain.FetchResult{Sensor: sensor, Day: day}
	u := c.URL(sensor, day)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		res.Attempts = attempt

		rows, err := c.fetchOnce(ctx, u, sensor)
		if err == nil {
			c.metrics.FetchAttempts.WithLabelValues(sensor, "success").Inc()
			res.Rows = rows
			return res
		}
		c.metrics.FetchAttempts.WithLabelValues(sensor, "error").Inc()
		lastErr = err

		if ctx.Err() != nil {
			res.Err = fmt.Errorf("fetch %s %s: %w", sensor, day.Format(domain.DateLayout), ctx.Err())
			return res
		}

		c.logger.Warn("firms fetch failed",
			"sensor", sensor,
			"date", day.Format(domain.DateLayout),
			"attempt", attempt,
			"max_attempts", c.attempts,
			"error", err,
		)

		if attempt < c.attempts && !c.wait(ctx) {
			res.Err = fmt.Errorf("fetch %s %s: %w", sensor, day.Format(domain.DateLayout), ctx.Err())
			return res
		}
	}

	res.Err = fmt.Errorf("%w: %s %s after %d attempts: %w",
		domain.ErrFetchRetryExhausted, sensor, day.Format(domain.DateLayout), c.attempts, lastErr)
	return res
}

func (c *Client) wait(ctx context.Context) bool {
	if c.delay <= 0 {
		return true
	}
	timer := c.clock.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (c *Client) fetchOnce(ctx context.Context, u, sensor string) ([]domain.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(sensor).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("firms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("firms API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return c.decode(resp.Body, sensor)
}

// decode parses a FIRMS CSV body. A header without the required columns is
// an error; individual rows with unusable coordinates are dropped.
func (c *Client) decode(r io.Reader, sensor string) ([]domain.Detection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty response body")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if missing := MissingColumnsError(header); missing != nil {
		return nil, missing
	}

	var rows []domain.Detection
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		d, err := domain.ParseDetection(sensor, header, record)
		if err != nil {
			c.metrics.DetectionsRejected.Inc()
			c.logger.Debug("skipping firms row", "sensor", sensor, "line", line, "error", err)
			continue
		}
		rows = append(rows, d)
	}
	return rows, nil
}

// MissingColumnsError returns a descriptive error when header lacks any
// required FIRMS column, or nil.
func MissingColumnsError(header []string) error {
	missing := domain.MissingColumns(header)
	if len(missing) == 0 {
		return nil
	}
	preview := strings.Join(header, ",")
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return fmt.Errorf("response missing columns %s (header %q)", strings.Join(missing, ", "), preview)
}
