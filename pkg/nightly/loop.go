package nightly

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/rs/zerolog"
)

// Day is the delay between two runs of a nightly job
const Day = 24 * time.Hour

// UntilMidnight returns the delay from now until the next local midnight
func UntilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

// Job is one nightly task
type Job interface {
	Name() string
	Run(ctx context.Context)
}

// LoopConfig configures a Loop
type LoopConfig struct {
	Job Job

	// Interval between runs after the first; defaults to Day
	Interval time.Duration

	// FirstDelay computes the delay before the first run; defaults to UntilMidnight
	FirstDelay func(now time.Time) time.Duration
}

// Loop runs a job at the next midnight and then once per interval
type Loop struct {
	cfg    LoopConfig
	logger zerolog.Logger

	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewLoop creates a stopped loop
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = Day
	}
	if cfg.FirstDelay == nil {
		cfg.FirstDelay = UntilMidnight
	}
	return &Loop{
		cfg:    cfg,
		logger: log.WithComponent("nightly").With().Str("job", cfg.Job.Name()).Logger(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the loop. Later calls are ignored.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Stop stops the loop and waits for a running job to return
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})

	started := true
	l.startOnce.Do(func() { started = false })
	if started {
		<-l.done
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	delay := l.cfg.FirstDelay(time.Now())
	l.logger.Info().Dur("first_run_in", delay).Msg("Nightly job scheduled")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			l.logger.Info().Msg("Running nightly job")
			l.cfg.Job.Run(ctx)
			metrics.NightlyRunsTotal.WithLabelValues(l.cfg.Job.Name()).Inc()
			timer.Reset(l.cfg.Interval)
		case <-ctx.Done():
			return
		}
	}
}
