package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
)

// KindTCP checks that a TCP address accepts connections
const KindTCP = "tcp"

// TCPProducer dials one address per iteration and publishes the connect time.
//
// Properties: address (host:port, required), timeout (5s).
type TCPProducer struct {
	address string
	dialer  *net.Dialer
	title   string
}

// NewTCPProducer is the Factory of KindTCP
func NewTCPProducer(src *types.SourceInstance) (source.Producer, error) {
	address := src.Property("address", "")
	if address == "" {
		return nil, errors.New("property address is required")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	timeout, err := time.ParseDuration(src.Property("timeout", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}

	return &TCPProducer{
		address: address,
		dialer:  &net.Dialer{Timeout: timeout},
		title:   src.Property("title", src.Name),
	}, nil
}

// Produce implements source.Producer
func (p *TCPProducer) Produce(ctx context.Context) (event.Event, error) {
	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return event.Event{}, source.Fail(fmt.Sprintf("connection to %s failed", p.address), err)
	}
	elapsed := time.Since(start)
	_ = conn.Close()

	ev := event.NewData(map[string]any{
		"address":   p.address,
		"reachable": true,
		"latencyMs": elapsed.Milliseconds(),
	})
	ev.Title = p.title
	return ev, nil
}
