package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
)

// KindClock publishes the current time
const KindClock = "clock"

// ClockProducer publishes the current time in a zone.
//
// Properties: zone (Local), format (15:04), title.
type ClockProducer struct {
	loc    *time.Location
	format string
	title  string
	now    func() time.Time
}

// NewClockProducer is the Factory of KindClock
func NewClockProducer(src *types.SourceInstance) (source.Producer, error) {
	loc, err := time.LoadLocation(src.Property("zone", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid zone: %w", err)
	}
	return &ClockProducer{
		loc:    loc,
		format: src.Property("format", "15:04"),
		title:  src.Property("title", src.Name),
		now:    time.Now,
	}, nil
}

// Produce implements source.Producer
func (p *ClockProducer) Produce(ctx context.Context) (event.Event, error) {
	now := p.now().In(p.loc)
	ev := event.NewData(map[string]any{
		"time": now.Format(p.format),
		"date": now.Format("2006-01-02"),
		"zone": p.loc.String(),
	})
	ev.Title = p.title
	return ev, nil
}
