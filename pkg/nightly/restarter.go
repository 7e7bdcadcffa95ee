package nightly

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/log"
)

// DefaultMaxJitter bounds the random pause before each automatic start
const DefaultMaxJitter = 10 * time.Second

// Enablement is the lifecycle control surface of the event sources
type Enablement interface {
	List() []string
	IsEnabled(id string) bool
	IsRunning(id string) bool
	Start(id string, autoStarted bool) error
}

// Restarter starts every enabled source that is not running, flagged as
// automatically started
type Restarter struct {
	sources   Enablement
	maxJitter time.Duration
}

// NewRestarter creates a restarter. A negative maxJitter disables the pause,
// zero selects DefaultMaxJitter.
func NewRestarter(sources Enablement, maxJitter time.Duration) *Restarter {
	if maxJitter == 0 {
		maxJitter = DefaultMaxJitter
	}
	return &Restarter{sources: sources, maxJitter: maxJitter}
}

// Name implements Job
func (r *Restarter) Name() string {
	return "restart"
}

// Run implements Job
func (r *Restarter) Run(ctx context.Context) {
	logger := log.WithComponent("nightly")

	started := 0
	for _, id := range r.sources.List() {
		if r.sources.IsRunning(id) || !r.sources.IsEnabled(id) {
			continue
		}
		if !r.pause(ctx) {
			return
		}
		if err := r.sources.Start(id, true); err != nil {
			logger.Warn().Err(err).Str("event_id", id).Msg("Unable to restart event source")
			continue
		}
		started++
	}

	logger.Info().Int("started", started).Msg("Nightly restart finished")
}

// pause sleeps for a random jitter. It returns false if ctx ended first.
func (r *Restarter) pause(ctx context.Context) bool {
	if r.maxJitter <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(rand.N(r.maxJitter))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Publisher receives the reload broadcast
type Publisher interface {
	Publish(e event.Event)
}

// DashboardLister lists the ids of the known dashboards
type DashboardLister interface {
	DashboardIDs() []string
}

// Reloader broadcasts a reload event addressing every known dashboard
type Reloader struct {
	publisher  Publisher
	dashboards DashboardLister
}

// NewReloader creates a reloader
func NewReloader(publisher Publisher, dashboards DashboardLister) *Reloader {
	return &Reloader{publisher: publisher, dashboards: dashboards}
}

// Name implements Job
func (r *Reloader) Name() string {
	return "reload"
}

// Run implements Job
func (r *Reloader) Run(ctx context.Context) {
	ids := r.dashboards.DashboardIDs()
	r.publisher.Publish(event.NewReload(ids))
	logger := log.WithComponent("nightly")
	logger.Info().Strs("dashboards", ids).Msg("Reload broadcast sent")
}
