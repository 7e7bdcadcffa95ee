package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/stats"
	"github.com/rs/zerolog"
)

// DefaultFrequency is used when a runner is configured without a frequency
const DefaultFrequency = time.Minute

// ErrAlreadyStarted is returned when Start is called on a used runner
var ErrAlreadyStarted = errors.New("runner already started")

// HaltFunc is called once after the failure policy halted a runner. It runs on
// the runner goroutine after Wait would return.
type HaltFunc func(eventID string, v Verdict)

// RunnerConfig configures a Runner
type RunnerConfig struct {
	EventID   string
	Frequency time.Duration
	Producer  Producer
	Publisher Publisher
	Stats     *stats.Tracker

	// MaxFailures overrides MaxConsecutiveFailures when positive
	MaxFailures int

	OnHalt HaltFunc
}

// Runner drives one producer with a fixed delay between the end of one
// iteration and the start of the next. A Runner is started once; restarting a
// source means creating a new Runner.
type Runner struct {
	cfg    RunnerConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	state   State
	policy  *Policy
	verdict Verdict

	trigger  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRunner creates a runner in StateIdle
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Frequency <= 0 {
		cfg.Frequency = DefaultFrequency
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewTracker()
	}
	return &Runner{
		cfg:     cfg,
		logger:  log.WithEventID(cfg.EventID).With().Str("component", "source").Logger(),
		state:   StateIdle,
		policy:  NewPolicy(cfg.MaxFailures),
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// EventID returns the id stamped on every produced event
func (r *Runner) EventID() string {
	return r.cfg.EventID
}

// Frequency returns the delay between iterations
func (r *Runner) Frequency() time.Duration {
	return r.cfg.Frequency
}

// State returns the current lifecycle state
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// ConsecutiveFailures returns the number of failed iterations since the last success
func (r *Runner) ConsecutiveFailures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Failures()
}

// StoppedBecauseOfError reports whether the failure policy halted the runner
func (r *Runner) StoppedBecauseOfError() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateHalted
}

// HaltVerdict returns the verdict that halted the runner, if any
func (r *Runner) HaltVerdict() Verdict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verdict
}

// Start launches the iteration loop. The first iteration runs immediately.
// Producers receive ctx unchanged; Stop does not cancel an iteration in flight.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.state = StateRunning
	r.mu.Unlock()

	r.logger.Info().Dur("frequency", r.cfg.Frequency).Msg("Starting event source")
	go r.run(ctx)
	return nil
}

// Stop asks the runner to stop at the next iteration boundary. It does not block.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		if r.state == StateRunning {
			r.state = StateStopping
		}
		r.mu.Unlock()
		close(r.stopCh)
	})
}

// Wait blocks until the loop has exited
func (r *Runner) Wait() {
	r.mu.RLock()
	idle := r.state == StateIdle
	r.mu.RUnlock()
	if idle {
		return
	}
	<-r.done
}

// Done is closed when the loop has exited
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// TriggerNow schedules an iteration as soon as the current one, if any, ends
func (r *Runner) TriggerNow() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Runner) run(ctx context.Context) {
	verdict := r.loop(ctx)
	close(r.done)

	if verdict.Halt && r.cfg.OnHalt != nil {
		r.cfg.OnHalt(r.cfg.EventID, verdict)
	}
}

func (r *Runner) loop(ctx context.Context) Verdict {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCh:
			r.finish(StateStopped)
			return Verdict{}
		case <-ctx.Done():
			r.finish(StateStopped)
			return Verdict{}
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		// A stop that raced the timer wins
		select {
		case <-r.stopCh:
			r.finish(StateStopped)
			return Verdict{}
		default:
		}

		if v := r.iterate(ctx); v.Halt {
			r.mu.Lock()
			r.verdict = v
			r.mu.Unlock()
			r.finish(StateHalted)

			metrics.SourceHaltsTotal.WithLabelValues(string(v.Reason)).Inc()
			r.logger.Warn().
				Str("reason", string(v.Reason)).
				Int("failures", v.Failures).
				Msg("Stopping event source because of errors")
			return v
		}

		timer.Reset(r.cfg.Frequency)
	}
}

func (r *Runner) finish(state State) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	if state == StateStopped {
		r.logger.Info().Msg("Event source stopped")
	}
}

// iterate runs the producer once and publishes the outcome
func (r *Runner) iterate(ctx context.Context) Verdict {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SourceIterationDuration)

	collector := r.cfg.Stats.CreateCollector(r.cfg.EventID)
	lifetime := r.lifetime()

	ev, err := r.produce(ctx)
	if err == nil && ev.IsError() {
		err = Fail(ev.Message, ev.Cause)
	}
	if err == nil {
		collector.Success()
		r.cfg.Publisher.Publish(r.stamp(ev, lifetime))

		r.mu.Lock()
		v := r.policy.OnSuccess()
		r.mu.Unlock()

		metrics.SourceIterationsTotal.WithLabelValues("success").Inc()
		return v
	}

	unexpected := !IsFailure(err)
	msg, cause := describe(err)
	collector.Failure(msg, cause)

	r.cfg.Publisher.DropStale(r.cfg.EventID)
	r.cfg.Publisher.Publish(event.NewError(msg, cause).WithID(r.cfg.EventID).WithLifetime(lifetime))

	r.mu.Lock()
	v := r.policy.OnFailure(collector.AutoStarted(), unexpected)
	r.mu.Unlock()

	result := "failure"
	if unexpected {
		result = "unexpected"
		r.logger.Error().Err(err).Msg("Cannot produce event")
	} else {
		r.logger.Warn().Err(err).Int("failures", v.Failures).Msg("Event source reported a failure")
	}
	metrics.SourceIterationsTotal.WithLabelValues(result).Inc()
	return v
}

func (r *Runner) produce(ctx context.Context) (ev event.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return r.cfg.Producer.Produce(ctx)
}

func (r *Runner) lifetime() time.Duration {
	if o, ok := r.cfg.Producer.(LifetimeOverrider); ok {
		if d := o.EventLifetime(r.cfg.Frequency); d > 0 {
			return d
		}
	}
	return r.cfg.Frequency * 3
}

func (r *Runner) stamp(ev event.Event, lifetime time.Duration) event.Event {
	ev.Kind = event.KindData
	ev.Dashboards = nil
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return ev.WithID(r.cfg.EventID).WithLifetime(lifetime)
}
