// Package nominatim resolves place names to boundary polygons with the
// Nominatim search API.
package nominatim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// Client implements domain.BoundaryResolver.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Resolve returns the boundary of the highest ranked match for place whose
// geometry is an area. Every failure wraps domain.ErrResolution.
func (c *Client) Resolve(ctx context.Context, place string) (domain.Boundary, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return domain.Boundary{}, fmt.Errorf("%w: empty place name", domain.ErrResolution)
	}

	params := url.Values{
		"q":               {place},
		"format":          {"geojson"},
		"polygon_geojson": {"1"},
		"limit":           {"50"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Boundary{}, fmt.Errorf("%w: create request: %w", domain.ErrResolution, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Boundary{}, fmt.Errorf("%w: %q: %w", domain.ErrResolution, place, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Boundary{}, fmt.Errorf("%w: %q: read body: %w", domain.ErrResolution, place, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Boundary{}, fmt.Errorf("%w: %q: nominatim status %d: %s",
			domain.ErrResolution, place, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return domain.Boundary{}, fmt.Errorf("%w: %q: decode response: %w", domain.ErrResolution, place, err)
	}
	if len(fc.Features) == 0 {
		return domain.Boundary{}, fmt.Errorf("%w: %q: no results", domain.ErrResolution, place)
	}

	f := firstArea(fc.Features)
	if f == nil {
		return domain.Boundary{}, fmt.Errorf("%w: %q: none of %d results is an area (first is a %s)",
			domain.ErrResolution, place, len(fc.Features), geometryType(fc.Features[0].Geometry))
	}

	name := f.Properties.MustString("display_name", place)
	c.logger.Info("boundary resolved", "place", place, "name", name, "geometry", f.Geometry.GeoJSONType())
	return domain.Boundary{Name: name, Geometry: f.Geometry}, nil
}

// firstArea returns the first polygonal feature in Nominatim's ranking.
func firstArea(features []*geojson.Feature) *geojson.Feature {
	for _, f := range features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			return f
		}
	}
	return nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "missing geometry"
	}
	return g.GeoJSONType()
}
