package stream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

// DefaultHeartbeat is the interval of SSE keep-alive comments and WebSocket pings
const DefaultHeartbeat = 30 * time.Second

// ErrClosed is returned by Send after the connection closed
var ErrClosed = errors.New("connection closed")

// SSEConn pushes events to a client as a Server-Sent Events stream
type SSEConn struct {
	id      string
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

// NewSSEConn writes the stream headers and returns the connection. It fails if
// w cannot flush.
func NewSSEConn(w http.ResponseWriter) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(":ok\n\n"))
	flusher.Flush()

	return &SSEConn{id: uuid.New().String(), w: w, flusher: flusher}, nil
}

// ID implements distributor.Connection
func (c *SSEConn) ID() string {
	return c.id
}

// Send writes payload as one "data" message
func (c *SSEConn) Send(payload []byte) error {
	var buf bytes.Buffer
	if err := sse.Encode(&buf, sse.Event{Data: string(payload)}); err != nil {
		return err
	}
	return c.write(buf.Bytes())
}

func (c *SSEConn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, err := c.w.Write(b); err != nil {
		c.closed = true
		return err
	}
	c.flusher.Flush()
	return nil
}

// Serve writes a keep-alive comment every heartbeat until ctx ends or a write
// fails, then closes the connection
func (c *SSEConn) Serve(ctx context.Context, heartbeat time.Duration) {
	defer c.Close()

	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write([]byte(":ping\n\n")); err != nil {
				return
			}
		}
	}
}

// Close stops further writes. The response ends when the handler returns.
func (c *SSEConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
