package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instance(kind string, props map[string]string) *types.SourceInstance {
	return &types.SourceInstance{ID: "test", Name: "Test", Kind: kind, Properties: props}
}

// TestRegistry tests kind lookup
func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{KindClock, KindHTTP, KindRedis, KindSQL, KindTCP}, r.Kinds())

	_, err := r.Build(instance("ftp", nil))
	assert.ErrorContains(t, err, "unknown source kind")

	_, err = r.Build(instance(KindHTTP, nil))
	assert.ErrorContains(t, err, "source test")

	p, err := r.Build(instance(KindClock, nil))
	require.NoError(t, err)
	assert.IsType(t, &ClockProducer{}, p)

	r.Register("static", func(src *types.SourceInstance) (source.Producer, error) {
		return source.ProducerFunc(func(ctx context.Context) (event.Event, error) {
			return event.NewData(src.ID), nil
		}), nil
	})
	_, err = r.Build(instance("static", nil))
	assert.NoError(t, err)
}

// TestHTTPProducer tests downloads and their failure modes
func TestHTTPProducer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Write([]byte(`{"builds":3,"failed":1}`))
		case "/text":
			w.Write([]byte("  all good\n"))
		case "/broken":
			w.Write([]byte(`{"builds":`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	build := func(t *testing.T, props map[string]string) source.Producer {
		t.Helper()
		p, err := NewHTTPProducer(instance(KindHTTP, props))
		require.NoError(t, err)
		return p
	}

	t.Run("json", func(t *testing.T) {
		ev, err := build(t, map[string]string{"url": srv.URL + "/json", "title": "CI"}).Produce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "CI", ev.Title)

		out, err := json.Marshal(ev.WithID("ci"))
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(out, &body))
		assert.Equal(t, float64(3), body["builds"])
	})

	t.Run("text", func(t *testing.T) {
		ev, err := build(t, map[string]string{"url": srv.URL + "/text", "format": "text"}).Produce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "all good", "status": 200}, ev.Payload)
	})

	t.Run("status mismatch", func(t *testing.T) {
		_, err := build(t, map[string]string{"url": srv.URL + "/down"}).Produce(context.Background())
		assert.True(t, source.IsFailure(err))
		assert.ErrorContains(t, err, "unexpected status 503")
	})

	t.Run("expected non-200 status", func(t *testing.T) {
		_, err := build(t, map[string]string{"url": srv.URL + "/down", "expect_status": "503", "format": "text"}).Produce(context.Background())
		assert.NoError(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := build(t, map[string]string{"url": srv.URL + "/broken"}).Produce(context.Background())
		assert.True(t, source.IsFailure(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := build(t, map[string]string{"url": "http://127.0.0.1:1/", "timeout": "1s"}).Produce(context.Background())
		assert.True(t, source.IsFailure(err))
	})
}

// TestHTTPProducerConfig tests property validation
func TestHTTPProducerConfig(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
	}{
		{"missing url", map[string]string{}},
		{"bad scheme", map[string]string{"url": "ftp://example.com"}},
		{"bad status", map[string]string{"url": "http://x", "expect_status": "ok"}},
		{"bad timeout", map[string]string{"url": "http://x", "timeout": "soon"}},
		{"bad format", map[string]string{"url": "http://x", "format": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPProducer(instance(KindHTTP, tt.props))
			assert.Error(t, err)
		})
	}
}

// TestSQLProducerSQLite tests the scalar query against a SQLite file
func TestSQLProducerSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "tickets.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tickets(id INTEGER PRIMARY KEY, open INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tickets(open) VALUES (1), (1), (0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	p, err := NewSQLProducer(instance(KindSQL, map[string]string{
		"driver": "sqlite",
		"dsn":    dsn,
		"query":  "SELECT COUNT(*) FROM tickets WHERE open = 1",
	}))
	require.NoError(t, err)
	defer p.(*SQLProducer).Close()

	ev, err := p.Produce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": int64(2)}, ev.Payload)

	bad, err := NewSQLProducer(instance(KindSQL, map[string]string{
		"driver": "sqlite",
		"dsn":    dsn,
		"query":  "SELECT COUNT(*) FROM missing",
	}))
	require.NoError(t, err)
	defer bad.(*SQLProducer).Close()

	_, err = bad.Produce(context.Background())
	assert.True(t, source.IsFailure(err))
}

// TestSQLProducerConfig tests driver and property validation
func TestSQLProducerConfig(t *testing.T) {
	_, err := NewSQLProducer(instance(KindSQL, map[string]string{"driver": "oracle", "dsn": "x", "query": "y"}))
	assert.ErrorContains(t, err, "unsupported driver")

	_, err = NewSQLProducer(instance(KindSQL, map[string]string{"driver": "sqlite"}))
	assert.Error(t, err)

	p, err := NewSQLProducer(instance(KindSQL, map[string]string{
		"driver": "postgres",
		"dsn":    "postgres://lookout@127.0.0.1:1/lookout?connect_timeout=1",
		"query":  "SELECT 1",
	}))
	require.NoError(t, err)
	defer p.(*SQLProducer).Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = p.Produce(ctx)
	assert.True(t, source.IsFailure(err))
}

// TestRedisProducer tests configuration and the unreachable-server failure
func TestRedisProducer(t *testing.T) {
	_, err := NewRedisProducer(instance(KindRedis, map[string]string{"url": "not a url"}))
	assert.Error(t, err)

	_, err = NewRedisProducer(instance(KindRedis, map[string]string{"url": "redis://127.0.0.1:1/0"}))
	assert.ErrorContains(t, err, "key or field")

	p, err := NewRedisProducer(instance(KindRedis, map[string]string{"url": "redis://127.0.0.1:1/0", "key": "deploys"}))
	require.NoError(t, err)
	defer p.(*RedisProducer).Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = p.Produce(ctx)
	assert.True(t, source.IsFailure(err))
}

// TestInfoField tests INFO reply parsing
func TestInfoField(t *testing.T) {
	info := "# Clients\r\nconnected_clients:7\r\nblocked_clients:0\r\n\r\n# Memory\r\nused_memory_human:1.02M\r\n"

	v, ok := infoField(info, "connected_clients")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	v, ok = infoField(info, "used_memory_human")
	assert.True(t, ok)
	assert.Equal(t, "1.02M", v)

	_, ok = infoField(info, "uptime")
	assert.False(t, ok)
}

// TestClockProducer tests formatting in a zone
func TestClockProducer(t *testing.T) {
	p, err := NewClockProducer(instance(KindClock, map[string]string{"zone": "UTC", "format": "15:04:05"}))
	require.NoError(t, err)
	clock := p.(*ClockProducer)
	clock.now = func() time.Time { return time.Date(2024, 5, 1, 13, 45, 30, 0, time.UTC) }

	ev, err := clock.Produce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"time": "13:45:30", "date": "2024-05-01", "zone": "UTC"}, ev.Payload)

	_, err = NewClockProducer(instance(KindClock, map[string]string{"zone": "Mars/Olympus"}))
	assert.Error(t, err)
}

// TestTCPProducer tests reachable and unreachable addresses
func TestTCPProducer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	p, err := NewTCPProducer(instance(KindTCP, map[string]string{"address": addr, "timeout": "1s"}))
	require.NoError(t, err)

	ev, err := p.Produce(context.Background())
	require.NoError(t, err)
	payload := ev.Payload.(map[string]any)
	assert.Equal(t, addr, payload["address"])
	assert.Equal(t, true, payload["reachable"])

	require.NoError(t, ln.Close())
	_, err = p.Produce(context.Background())
	assert.True(t, source.IsFailure(err))
	assert.ErrorContains(t, err, "connection to "+addr+" failed")

	_, err = NewTCPProducer(instance(KindTCP, nil))
	assert.Error(t, err)
	_, err = NewTCPProducer(instance(KindTCP, map[string]string{"address": "no-port"}))
	assert.Error(t, err)
}
