package source

// MaxConsecutiveFailures is the number of reported failures in a row a runner
// tolerates; the next one halts it
const MaxConsecutiveFailures = 5

// State is the lifecycle state of a Runner
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateHalted   State = "halted"
)

// HaltReason explains why the failure policy halted a runner
type HaltReason string

const (
	HaltNone        HaltReason = ""
	HaltAutoStarted HaltReason = "auto_started"
	HaltThreshold   HaltReason = "threshold"
	HaltUnexpected  HaltReason = "unexpected"
)

// Verdict is the outcome of evaluating one iteration
type Verdict struct {
	Halt     bool
	Reason   HaltReason
	Failures int
}

// Policy is the consecutive-failure state machine of one runner. It is owned
// by the runner goroutine.
type Policy struct {
	failures int
	max      int
}

// NewPolicy creates a policy that halts after more than max failures in a row
func NewPolicy(max int) *Policy {
	if max <= 0 {
		max = MaxConsecutiveFailures
	}
	return &Policy{max: max}
}

// Failures returns the current consecutive failure count
func (p *Policy) Failures() int {
	return p.failures
}

// OnSuccess resets the failure count
func (p *Policy) OnSuccess() Verdict {
	p.failures = 0
	return Verdict{}
}

// OnFailure records one failure and decides whether to halt.
//
// A failed automatic restart halts without counting. Otherwise the failure is
// counted; an unexpected failure halts at once and a reported one halts when
// the count exceeds the maximum.
func (p *Policy) OnFailure(autoStarted, unexpected bool) Verdict {
	if autoStarted {
		return Verdict{Halt: true, Reason: HaltAutoStarted, Failures: p.failures}
	}

	p.failures++
	switch {
	case p.failures > p.max:
		return Verdict{Halt: true, Reason: HaltThreshold, Failures: p.failures}
	case unexpected:
		return Verdict{Halt: true, Reason: HaltUnexpected, Failures: p.failures}
	default:
		return Verdict{Failures: p.failures}
	}
}
