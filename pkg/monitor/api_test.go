package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autobrr/botmon/pkg/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTasks(svc *Service) {
	for _, l := range []string{
		"Processing task: t1",
		"file[a.bin]: Starting file download",
		"Progress update: t1, 25/100",
		"Processing task: t2",
		"file[b.bin]: Starting file download",
		"file[b.bin]: downloaded successfully",
	} {
		svc.HandleLine(l)
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_GetTasks(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedTasks(svc)

	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks  []map[string]any `json:"tasks"`
		Count  int              `json:"count"`
		Active int              `json:"active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.Active)
	require.Len(t, body.Tasks, 2)

	first := body.Tasks[0]
	assert.Equal(t, "t1", first["task_id"])
	assert.Equal(t, "a.bin", first["filename"])
	assert.Equal(t, "下载中", first["status"])
	assert.Equal(t, 25.0, first["progress"])
	assert.Contains(t, first, "start_time")

	assert.Equal(t, "已完成", body.Tasks[1]["status"])
	assert.Equal(t, 100.0, body.Tasks[1]["progress"])
}

func TestAPI_ClearTasks(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantCleared int
		wantLeft    int
	}{
		{name: "empty body clears completed", body: "", wantCode: http.StatusOK, wantCleared: 1, wantLeft: 1},
		{name: "completed", body: `{"type":"completed"}`, wantCode: http.StatusOK, wantCleared: 1, wantLeft: 1},
		{name: "all", body: `{"type":"all"}`, wantCode: http.StatusOK, wantCleared: 2, wantLeft: 0},
		{name: "unknown type", body: `{"type":"everything"}`, wantCode: http.StatusBadRequest, wantLeft: 2},
		{name: "malformed", body: `{"type":`, wantCode: http.StatusBadRequest, wantLeft: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			seedTasks(svc)

			h := NewAPIServer(svc.cfg, svc).Handler()
			rec := doRequest(t, h, http.MethodPost, "/api/tasks/clear", tt.body)

			require.Equal(t, tt.wantCode, rec.Code)

			var res ClearResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

			if tt.wantCode == http.StatusOK {
				assert.True(t, res.Success)
				assert.Equal(t, tt.wantCleared, res.Cleared)
			} else {
				assert.False(t, res.Success)
				assert.NotEmpty(t, res.Error)
			}

			assert.Equal(t, tt.wantLeft, svc.Registry().Len())
		})
	}
}

func TestAPI_Auth(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.cfg.Http.Token = "secret"

	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/tasks?apikey=secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// health checks stay open
	rec = doRequest(t, h, http.MethodGet, "/api/healthz/liveness", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_Status(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, StatusNotRunning, st["status"])
	assert.Contains(t, st, "download_speed")
	assert.Contains(t, st, "last_update")
}

func TestAPI_Logs(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.HandleLine("first")
	svc.HandleLine("second")

	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var lines []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestAPI_MetricsAndNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.HandleLine("Processing task: t1")
	svc.Refresh()

	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "botmon_active_tasks 1")

	rec = doRequest(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAPI_History(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewAPIServer(svc.cfg, svc).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	svc.history = store
	seedTasks(svc)

	rec = doRequest(t, h, http.MethodGet, "/api/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "t2", entries[0].Task.ID)
	assert.Equal(t, "b.bin", entries[0].Task.Filename)

	rec = doRequest(t, h, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/history/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum history.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.ByStatus["已完成"])
}
