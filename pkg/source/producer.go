package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/lookout/pkg/event"
)

// Producer produces one event per call.
//
// Returning a *Failure reports an expected failure that counts toward the
// consecutive failure threshold. Any other error, and any panic, is treated as
// unexpected and halts the runner. A returned KindError event is handled like
// a *Failure carrying its message and cause; any other event is published as
// KindData.
type Producer interface {
	Produce(ctx context.Context) (event.Event, error)
}

// ProducerFunc adapts a function to the Producer interface
type ProducerFunc func(ctx context.Context) (event.Event, error)

// Produce calls f(ctx)
func (f ProducerFunc) Produce(ctx context.Context) (event.Event, error) {
	return f(ctx)
}

// LifetimeOverrider is implemented by producers whose events live longer or
// shorter than three times the frequency
type LifetimeOverrider interface {
	EventLifetime(frequency time.Duration) time.Duration
}

// Publisher receives the events produced by a runner
type Publisher interface {
	Publish(e event.Event)
	// DropStale removes the cached entry for id if it is an expired data event
	DropStale(id string)
}

// Failure is a failure reported by the producer itself
type Failure struct {
	Message string
	Cause   error
}

// Fail creates a producer-reported failure
func Fail(message string, cause error) *Failure {
	return &Failure{Message: message, Cause: cause}
}

// Failf creates a producer-reported failure with a formatted message
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	switch {
	case f.Cause == nil:
		return f.Message
	case f.Message == "":
		return f.Cause.Error()
	default:
		return f.Message + ": " + f.Cause.Error()
	}
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// IsFailure reports whether err is, or wraps, a producer-reported failure
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// describe splits err into the message and cause recorded for a failed run
func describe(err error) (string, error) {
	var f *Failure
	if errors.As(err, &f) {
		msg := f.Message
		if msg == "" && f.Cause != nil {
			msg = f.Cause.Error()
		}
		return msg, f.Cause
	}
	return "event source failed unexpectedly", err
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("producer panicked: %v", p.value)
}
