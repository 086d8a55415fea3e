package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/observability"
)

const (
	testBoundary = `{"type":"FeatureCollection","features":[{"type":"Feature",
		"properties":{"display_name":"Testland, Somewhere"},
		"geometry":{"type":"Polygon","coordinates":[[[150,-34],[151,-34],[151,-33],[150,-33],[150,-34]]]}}]}`
	testPointOnly = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
		"geometry":{"type":"Point","coordinates":[150.5,-33.5]}}]}`

	firmsHeader  = "latitude,longitude,brightness,scan,track,acq_date,acq_time,satellite,confidence,version,bright_t31,frp,daynight\n"
	firmsInside  = firmsHeader + "-33.495,150.505,330.1,1.0,1.0,2024-01-05,342,Terra,81,6.1NRT,295.2,12.4,D\n"
	firmsOutside = firmsHeader + "10.0,10.0,330.1,1.0,1.0,2024-01-05,342,Terra,81,6.1NRT,295.2,12.4,D\n"

	testOverpassEmpty  = `<?xml version="1.0" encoding="UTF-8"?><osm version="0.6"></osm>`
	testOverpassForest = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="-33.5000000" lon="150.5000000"/>
  <node id="2" lat="-33.5000000" lon="150.5100000"/>
  <node id="3" lat="-33.4900000" lon="150.5100000"/>
  <node id="4" lat="-33.4900000" lon="150.5000000"/>
  <way id="100">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="4"/><nd ref="1"/>
    <tag k="landuse" v="forest"/>
  </way>
</osm>`
)

// services stands in for Nominatim, FIRMS and Overpass on one server.
type services struct {
	boundary    string
	firmsStatus int
	firmsBody   string
	overpass    string
}

func (s services) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.boundary)
	})
	mux.HandleFunc("/api/area/csv/", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/MODIS_SP/world/1/2024-01-05")
		w.WriteHeader(s.firmsStatus)
		_, _ = io.WriteString(w, s.firmsBody)
	})
	mux.HandleFunc("/interpreter", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = io.WriteString(w, s.overpass)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runEnv points every client at srv and keeps the run quiet and fast.
func runEnv(t *testing.T, srv *httptest.Server) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDENTIALS_PATH", filepath.Join(home, "creds.json"))
	t.Setenv("FIRMS_BASE_URL", srv.URL)
	t.Setenv("FIRMS_API_KEY", "")
	t.Setenv("FIRMS_SENSORS", "MODIS_SP")
	t.Setenv("FIRMS_RETRY_ATTEMPTS", "1")
	t.Setenv("FIRMS_RETRY_DELAY", "0s")
	t.Setenv("NOMINATIM_BASE_URL", srv.URL)
	t.Setenv("OVERPASS_BASE_URL", srv.URL+"/interpreter")
	t.Setenv("OSM_TAGS_FILE", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("LOG_LEVEL", "error")

	orig := newMetrics
	newMetrics = observability.NewMetricsForTesting
	t.Cleanup(func() { newMetrics = orig })
}

func TestRun_Outcomes(t *testing.T) {
	blockedDir := func(t *testing.T) string {
		file := filepath.Join(t.TempDir(), "taken")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		return filepath.Join(file, "out")
	}
	freshDir := func(t *testing.T) string { return filepath.Join(t.TempDir(), "out") }

	tests := []struct {
		name    string
		svc     services
		outDir  func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "output directory cannot be created",
			svc:     services{boundary: testBoundary, firmsStatus: http.StatusOK, firmsBody: firmsInside, overpass: testOverpassForest},
			outDir:  blockedDir,
			wantErr: domain.ErrDirectory,
		},
		{
			name:    "place is not an area",
			svc:     services{boundary: testPointOnly, firmsStatus: http.StatusOK, firmsBody: firmsInside, overpass: testOverpassForest},
			outDir:  freshDir,
			wantErr: domain.ErrResolution,
		},
		{
			name:    "every date fails to download",
			svc:     services{boundary: testBoundary, firmsStatus: http.StatusInternalServerError, firmsBody: "down", overpass: testOverpassForest},
			outDir:  freshDir,
			wantErr: domain.ErrNoData,
		},
		{
			name:    "no detection inside the boundary",
			svc:     services{boundary: testBoundary, firmsStatus: http.StatusOK, firmsBody: firmsOutside, overpass: testOverpassForest},
			outDir:  freshDir,
			wantErr: domain.ErrNoData,
		},
		{
			name:    "no map features near any event",
			svc:     services{boundary: testBoundary, firmsStatus: http.StatusOK, firmsBody: firmsInside, overpass: testOverpassEmpty},
			outDir:  freshDir,
			wantErr: domain.ErrNoMatches,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runEnv(t, tt.svc.start(t))
			var out bytes.Buffer
			opts := options{location: "Testland", start: "2024-01-05", end: "2024-01-05", outDir: tt.outDir(t), apiKey: "k"}

			err := run(context.Background(), opts, newPrompter(strings.NewReader(""), &out))
			require.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, out.String(), "wrote")
		})
	}
}

func TestRun_WritesResultFiles(t *testing.T) {
	svc := services{boundary: testBoundary, firmsStatus: http.StatusOK, firmsBody: firmsInside, overpass: testOverpassForest}
	runEnv(t, svc.start(t))
	dir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer

	err := run(context.Background(),
		options{location: "Testland", start: "2024-01-05", end: "2024-01-05", outDir: dir, apiKey: "k"},
		newPrompter(strings.NewReader(""), &out))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, 3, strings.Count(out.String(), "wrote "))
}
