package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/types"
)

// ErrNotFound is returned when the server answers 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 answers
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the lookout HTTP API
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at addr ("host:port" or a URL)
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListSources returns the status of every source
func (c *Client) ListSources(ctx context.Context) ([]manager.SourceStatus, error) {
	var out []manager.SourceStatus
	err := c.do(ctx, http.MethodGet, "/api/sources", nil, &out)
	return out, err
}

// GetSource returns the status of one source
func (c *Client) GetSource(ctx context.Context, id string) (*manager.SourceStatus, error) {
	var out manager.SourceStatus
	if err := c.do(ctx, http.MethodGet, "/api/sources/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveSource creates or updates a source
func (c *Client) SaveSource(ctx context.Context, src *types.SourceInstance) error {
	return c.do(ctx, http.MethodPut, "/api/sources/"+url.PathEscape(src.ID), src, src)
}

// DeleteSource deletes a source
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sources/"+url.PathEscape(id), nil, nil)
}

// SourceAction runs start, stop, restart, trigger, enable or disable
func (c *Client) SourceAction(ctx context.Context, id, action string) error {
	return c.do(ctx, http.MethodPost, "/api/sources/"+url.PathEscape(id)+"/"+url.PathEscape(action), nil, nil)
}

// CachedEvents returns the events currently cached by the server, in their
// wire form
func (c *Client) CachedEvents(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	err := c.do(ctx, http.MethodGet, "/api/events", nil, &out)
	return out, err
}

// ListDashboards returns all dashboards
func (c *Client) ListDashboards(ctx context.Context) ([]types.Dashboard, error) {
	var out []types.Dashboard
	err := c.do(ctx, http.MethodGet, "/api/dashboards", nil, &out)
	return out, err
}

// SaveDashboard creates or updates a dashboard
func (c *Client) SaveDashboard(ctx context.Context, d *types.Dashboard) error {
	return c.do(ctx, http.MethodPut, "/api/dashboards/"+url.PathEscape(d.ID), d, d)
}

// EventID returns the id field of an event in wire form
func EventID(e map[string]any) string {
	id, _ := e["id"].(string)
	return id
}

// IsError reports whether an event in wire form is an error event
func IsError(e map[string]any) bool {
	b, _ := e["error"].(bool)
	return b
}
