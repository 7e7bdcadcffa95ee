package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/sources"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv  *Server
	mgr  *manager.Manager
	dist *distributor.Distributor
}

func setupServer(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dist := distributor.New(distributor.Config{ApplicationID: "test"})
	dist.Start()
	t.Cleanup(dist.Stop)

	registry := sources.NewRegistry()
	registry.Register("static", func(src *types.SourceInstance) (source.Producer, error) {
		return source.ProducerFunc(func(ctx context.Context) (event.Event, error) {
			return event.NewData(map[string]any{"value": 1}), nil
		}), nil
	})

	mgr, err := manager.NewManager(manager.Config{Store: store, Registry: registry, Publisher: dist})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Shutdown() })

	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 20 * time.Millisecond
	}
	return &testEnv{srv: NewServer(mgr, dist, cfg), mgr: mgr, dist: dist}
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func staticSource(id string) *types.SourceInstance {
	return &types.SourceInstance{ID: id, Name: id, Kind: "static", Frequency: time.Hour, Enabled: true}
}

// TestHealthRoutes tests the probes and the metrics endpoint
func TestHealthRoutes(t *testing.T) {
	env := setupServer(t, Config{})
	h := env.srv.Handler()

	rec := doReq(t, h, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, h, http.MethodGet, "/health", nil)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "status")

	rec = doReq(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lookout_api_requests_total")
}

// TestSourceLifecycle tests the source endpoints and their error codes
func TestSourceLifecycle(t *testing.T) {
	env := setupServer(t, Config{})
	h := env.srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid json", http.MethodPost, "/api/sources", "not a source", http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/sources", &types.SourceInstance{ID: "x", Kind: "ftp"}, http.StatusBadRequest},
		{"create", http.MethodPost, "/api/sources", staticSource("cpu"), http.StatusOK},
		{"update by path", http.MethodPut, "/api/sources/cpu", staticSource("ignored"), http.StatusOK},
		{"get", http.MethodGet, "/api/sources/cpu", nil, http.StatusOK},
		{"get missing", http.MethodGet, "/api/sources/nope", nil, http.StatusNotFound},
		{"stop idle", http.MethodPost, "/api/sources/cpu/stop", nil, http.StatusConflict},
		{"start", http.MethodPost, "/api/sources/cpu/start", nil, http.StatusOK},
		{"start twice", http.MethodPost, "/api/sources/cpu/start", nil, http.StatusConflict},
		{"trigger", http.MethodPost, "/api/sources/cpu/trigger", nil, http.StatusOK},
		{"unknown action", http.MethodPost, "/api/sources/cpu/explode", nil, http.StatusNotFound},
		{"restart", http.MethodPost, "/api/sources/cpu/restart", nil, http.StatusOK},
		{"disable", http.MethodPost, "/api/sources/cpu/disable", nil, http.StatusOK},
		{"start disabled", http.MethodPost, "/api/sources/cpu/start", nil, http.StatusConflict},
		{"delete", http.MethodDelete, "/api/sources/cpu", nil, http.StatusOK},
		{"delete missing", http.MethodDelete, "/api/sources/cpu", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := doReq(t, h, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.want, rec.Code, "%s: %s", tt.name, rec.Body.String())
	}

	_, err := env.mgr.GetSource("ignored")
	assert.ErrorIs(t, err, manager.ErrNotFound)
}

// TestListSourcesAndEvents tests the status list and the cached event diagnostics
func TestListSourcesAndEvents(t *testing.T) {
	env := setupServer(t, Config{})
	h := env.srv.Handler()

	require.NoError(t, env.mgr.SaveSource(staticSource("cpu")))
	require.NoError(t, env.mgr.StartSource("cpu", false))

	require.Eventually(t, func() bool {
		_, ok := env.dist.Cached("cpu")
		return ok
	}, 2*time.Second, time.Millisecond)

	rec := doReq(t, h, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []manager.SourceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, source.StateRunning, statuses[0].State)
	assert.NotNil(t, statuses[0].LastSuccessfulRun)

	rec = doReq(t, h, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cached []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	require.Len(t, cached, 1)
	assert.Equal(t, "cpu", cached[0]["id"])
	assert.EqualValues(t, 1, cached[0]["value"])
}

// TestDashboardEndpoints tests dashboard storage through the API
func TestDashboardEndpoints(t *testing.T) {
	env := setupServer(t, Config{})
	h := env.srv.Handler()

	ops := types.Dashboard{Title: "Ops", Widgets: []types.Widget{{Name: "CPU", SourceID: "cpu"}}}
	assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodPut, "/api/dashboards/ops", ops).Code)
	assert.Equal(t, http.StatusBadRequest, doReq(t, h, http.MethodPost, "/api/dashboards", types.Dashboard{}).Code)

	rec := doReq(t, h, http.MethodGet, "/api/dashboards", nil)
	var list []types.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ops", list[0].ID)

	assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodGet, "/api/dashboards/ops", nil).Code)
	assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodDelete, "/api/dashboards/ops", nil).Code)
	assert.Equal(t, http.StatusNotFound, doReq(t, h, http.MethodGet, "/api/dashboards/ops", nil).Code)
}

// TestReadOnly tests that mutating requests are rejected
func TestReadOnly(t *testing.T) {
	env := setupServer(t, Config{ReadOnly: true})
	h := env.srv.Handler()

	assert.Equal(t, http.StatusForbidden, doReq(t, h, http.MethodPost, "/api/sources", staticSource("cpu")).Code)
	assert.Equal(t, http.StatusForbidden, doReq(t, h, http.MethodDelete, "/api/dashboards/ops", nil).Code)
	assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodGet, "/api/sources", nil).Code)
}

// TestStreamSubscriptionErrors tests the validation of push requests
func TestStreamSubscriptionErrors(t *testing.T) {
	env := setupServer(t, Config{})
	h := env.srv.Handler()

	assert.Equal(t, http.StatusNotFound, doReq(t, h, http.MethodGet, "/events?dashboard=missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doReq(t, h, http.MethodGet, "/events?rate=fast", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doReq(t, h, http.MethodGet, "/ws?rate=-1", nil).Code)
}

func scopedEnv(t *testing.T) (*testEnv, *httptest.Server) {
	env := setupServer(t, Config{})
	require.NoError(t, env.mgr.SaveDashboard(&types.Dashboard{
		ID:      "ops",
		Widgets: []types.Widget{{Name: "CPU", SourceID: "cpu"}},
	}))
	env.dist.Publish(event.NewData(map[string]any{"value": 2}).WithID("mem"))
	env.dist.Publish(event.NewData(map[string]any{"value": 1}).WithID("cpu"))

	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)
	return env, ts
}

// TestSSEStream tests replay of cached events restricted to a dashboard
func TestSSEStream(t *testing.T) {
	_, ts := scopedEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?dashboard=ops", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	require.NotEmpty(t, data)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "cpu", got["id"])
	assert.Equal(t, "test", got["applicationId"])
}

// TestWSStream tests delivery over WebSocket
func TestWSStream(t *testing.T) {
	env, ts := scopedEnv(t)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?dashboard=ops", nil)
	require.NoError(t, err)
	defer client.Close()

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "cpu", got["id"])

	// Reload events ignore the scope
	env.dist.Publish(event.NewReload([]string{"ops"}))
	_, msg, err = client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, event.ReloadID, got["id"])
}
