// Package overpass fetches tagged OSM elements inside a bounding box from an
// Overpass API interpreter and converts them to geometries.
package overpass

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// Client implements domain.FeatureSource.
type Client struct {
	endpoint   string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an Overpass client for the interpreter at endpoint.
// timeout bounds both the server-side query and the HTTP round trip.
func NewClient(endpoint, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		timeout:   timeout,
		// Leave headroom over the server-side limit for the transfer itself.
		httpClient: &http.Client{Timeout: timeout + 30*time.Second},
		logger:     logger,
	}
}

// Features returns every node, way and relation inside box carrying one of
// the tag keys in tags. An empty response wraps domain.ErrNoFeatures.
func (c *Client) Features(ctx context.Context, box domain.BoundingBox, tags domain.TagFilter) ([]domain.MapFeature, error) {
	query := BuildQuery(box, tags, c.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(url.Values{"data": {query}}.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read overpass response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass API error: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return Decode(body)
}

// Decode converts an Overpass XML document into map features.
func Decode(body []byte) ([]domain.MapFeature, error) {
	var o osm.OSM
	if err := xml.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("decode overpass xml: %w", err)
	}
	if len(o.Nodes)+len(o.Ways)+len(o.Relations) == 0 {
		return nil, domain.ErrNoFeatures
	}

	fc, err := osmgeojson.Convert(&o, osmgeojson.NoMeta(true))
	if err != nil {
		return nil, fmt.Errorf("convert osm elements: %w", err)
	}

	features := make([]domain.MapFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		mf, ok := toMapFeature(f)
		if !ok {
			continue
		}
		features = append(features, mf)
	}
	if len(features) == 0 {
		return nil, domain.ErrNoFeatures
	}
	return features, nil
}

// BuildQuery renders the Overpass QL union for box and tags. Keys are
// emitted in sorted order so identical inputs give identical queries.
func BuildQuery(box domain.BoundingBox, tags domain.TagFilter, timeout time.Duration) string {
	bbox := fmt.Sprintf("(%s,%s,%s,%s)",
		formatCoord(box.South), formatCoord(box.West), formatCoord(box.North), formatCoord(box.East))

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:xml][timeout:%d];\n(\n", max(int(timeout.Seconds()), 1))
	for _, k := range keys {
		selector := tagSelector(k, tags[k])
		for _, elem := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&b, "  %s%s%s;\n", elem, selector, bbox)
		}
	}
	b.WriteString(");\n(._;>;);\nout body;\n")
	return b.String()
}

func tagSelector(key string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("[%q]", key)
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return fmt.Sprintf("[%q~%q]", key, "^("+strings.Join(quoted, "|")+")$")
}

func toMapFeature(f *geojson.Feature) (domain.MapFeature, bool) {
	if f.Geometry == nil {
		return domain.MapFeature{}, false
	}
	elemType, id, ok := parseFeatureID(f)
	if !ok {
		return domain.MapFeature{}, false
	}
	return domain.MapFeature{
		ElementType: elemType,
		OSMID:       id,
		Tags:        featureTags(f.Properties["tags"]),
		Geometry:    f.Geometry,
	}, true
}

// parseFeatureID reads "<type>/<id>" from the feature ID, falling back to
// the type and id properties.
func parseFeatureID(f *geojson.Feature) (string, int64, bool) {
	if s, ok := f.ID.(string); ok {
		if typ, raw, found := strings.Cut(s, "/"); found {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return typ, id, true
			}
		}
	}

	typ, _ := f.Properties["type"].(string)
	var id int64
	switch v := f.Properties["id"].(type) {
	case int:
		id = int64(v)
	case int64:
		id = v
	case float64:
		id = int64(v)
	case osm.NodeID:
		id = int64(v)
	case osm.WayID:
		id = int64(v)
	case osm.RelationID:
		id = int64(v)
	default:
		return "", 0, false
	}
	return typ, id, typ != ""
}

func featureTags(v any) map[string]string {
	switch t := v.(type) {
	case map[string]string:
		return t
	case osm.Tags:
		return t.Map()
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = fmt.Sprint(val)
		}
		return out
	}
	return map[string]string{}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
