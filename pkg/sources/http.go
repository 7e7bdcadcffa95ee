package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
)

// KindHTTP downloads a URL and publishes the response
const KindHTTP = "http"

// maxBodySize caps the downloaded body
const maxBodySize = 1 << 20

// HTTPProducer downloads one URL per iteration.
//
// Properties: url (required), method (GET), expect_status (200),
// timeout (10s), format ("json" or "text"), title, moreinfo.
type HTTPProducer struct {
	client       *http.Client
	method       string
	url          string
	expectStatus int
	format       string
	title        string
	moreInfo     string
}

// NewHTTPProducer is the Factory of KindHTTP
func NewHTTPProducer(src *types.SourceInstance) (source.Producer, error) {
	raw := src.Property("url", "")
	if raw == "" {
		return nil, errors.New("property url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", raw)
	}

	status, err := strconv.Atoi(src.Property("expect_status", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid expect_status: %w", err)
	}
	timeout, err := time.ParseDuration(src.Property("timeout", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	format := src.Property("format", "json")
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("invalid format %q", format)
	}

	return &HTTPProducer{
		client:       &http.Client{Timeout: timeout},
		method:       strings.ToUpper(src.Property("method", http.MethodGet)),
		url:          u.String(),
		expectStatus: status,
		format:       format,
		title:        src.Property("title", src.Name),
		moreInfo:     src.Property("moreinfo", ""),
	}, nil
}

// Produce implements source.Producer
func (p *HTTPProducer) Produce(ctx context.Context) (event.Event, error) {
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return event.Event{}, source.Fail("download failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return event.Event{}, source.Fail("reading response failed", err)
	}
	if resp.StatusCode != p.expectStatus {
		return event.Event{}, source.Failf("unexpected status %d from %s", resp.StatusCode, p.url)
	}

	var payload any
	switch p.format {
	case "json":
		if !json.Valid(body) {
			return event.Event{}, source.Failf("response of %s is not valid JSON", p.url)
		}
		payload = json.RawMessage(body)
	default:
		payload = map[string]any{
			"text":   strings.TrimSpace(string(body)),
			"status": resp.StatusCode,
		}
	}

	ev := event.NewData(payload)
	ev.Title = p.title
	ev.MoreInfo = p.moreInfo
	return ev, nil
}
