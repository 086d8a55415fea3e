package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/firms-osm-xref/internal/adapter/http"
	"github.com/couchcryptid/firms-osm-xref/internal/pipeline"
)

type mockRun struct {
	err      error
	progress pipeline.Progress
}

func (m *mockRun) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockRun) Progress() pipeline.Progress { return m.progress }

func newTestServer(run *mockRun) *httpadapter.Server {
	return httpadapter.NewServer(":0", run, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenRunFinished(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhileRunning(t *testing.T) {
	srv := newTestServer(&mockRun{err: fmt.Errorf("run in progress")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "run in progress", body["error"])
}

func TestStatusReturnsProgress(t *testing.T) {
	srv := newTestServer(&mockRun{progress: pipeline.Progress{
		RunID:      "run-1",
		Stage:      pipeline.StageFeatures,
		DatesTotal: 3,
		DatesDone:  3,
		CellsTotal: 12,
		CellsDone:  5,
	}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got pipeline.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, pipeline.StageFeatures, got.Stage)
	assert.Equal(t, 5, got.CellsDone)
	assert.False(t, got.Finished)
}

func TestStatusRejectsPost(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
