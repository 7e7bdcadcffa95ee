package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/lookout/pkg/api"
	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dist := distributor.New(distributor.Config{})
	dist.Start()
	t.Cleanup(dist.Stop)

	mgr, err := manager.NewManager(manager.Config{Store: store, Publisher: dist})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Shutdown() })

	ts := httptest.NewServer(api.NewServer(mgr, dist, api.Config{}).Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL)
}

// TestNewClientAddress tests address normalization
func TestNewClientAddress(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", NewClient("localhost:8080").base)
	assert.Equal(t, "https://lookout.example.com", NewClient("https://lookout.example.com/").base)
}

// TestClientRoundTrip tests the client against the HTTP API
func TestClientRoundTrip(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	src := &types.SourceInstance{ID: "clock", Name: "Clock", Kind: "clock", Frequency: time.Hour, Enabled: true}
	require.NoError(t, c.SaveSource(ctx, src))
	assert.False(t, src.CreatedAt.IsZero())

	require.NoError(t, c.SourceAction(ctx, "clock", "start"))

	err := c.SourceAction(ctx, "clock", "start")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already running")

	list, err := c.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, source.StateRunning, list[0].State)

	require.Eventually(t, func() bool {
		events, err := c.CachedEvents(ctx)
		return err == nil && len(events) == 1 && EventID(events[0]) == "clock" && !IsError(events[0])
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.SaveDashboard(ctx, &types.Dashboard{ID: "ops", Widgets: []types.Widget{{SourceID: "clock"}}}))
	dashboards, err := c.ListDashboards(ctx)
	require.NoError(t, err)
	require.Len(t, dashboards, 1)

	require.NoError(t, c.DeleteSource(ctx, "clock"))
	_, err = c.GetSource(ctx, "clock")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestClientUnreachable tests transport errors
func TestClientUnreachable(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	_, err := c.ListSources(context.Background())
	assert.ErrorContains(t, err, "failed to reach")
}
