package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/log"
)

// MaxRunHistory is the number of runs kept per source
const MaxRunHistory = 10

// Action is a named sub-timing inside one run
type Action struct {
	Name     string        `json:"name"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%s): %s", a.Name, a.Detail, a.Duration)
}

// RunRecord is the immutable outcome of one iteration
type RunRecord struct {
	StartTime   time.Time     `json:"startTime"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	AutoStarted bool          `json:"automaticallyStarted"`
	Message     string        `json:"message,omitempty"`
	Cause       error         `json:"-"`
	Actions     []Action      `json:"actions,omitempty"`
}

// CauseText returns the cause's message, or "" when there is none
func (r RunRecord) CauseText() string {
	if r.Cause == nil {
		return ""
	}
	return r.Cause.Error()
}

// EventSourceStatistics holds the bounded run history of one source
type EventSourceStatistics struct {
	mu             sync.Mutex
	lastSuccessful *RunRecord
	lastFailed     *RunRecord
	history        []RunRecord
	autoStarted    bool
}

// AutoStarted reports whether the current run was started by the nightly restarter
func (s *EventSourceStatistics) AutoStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoStarted
}

// SetAutoStarted records how the source was last started
func (s *EventSourceStatistics) SetAutoStarted(auto bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoStarted = auto
}

// LastSuccessfulRun returns the most recent successful run
func (s *EventSourceStatistics) LastSuccessfulRun() (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSuccessful == nil {
		return RunRecord{}, false
	}
	return *s.lastSuccessful, true
}

// LastFailedRun returns the most recent failed run
func (s *EventSourceStatistics) LastFailedRun() (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFailed == nil {
		return RunRecord{}, false
	}
	return *s.lastFailed, true
}

// LastRun returns the newest entry of the history
func (s *EventSourceStatistics) LastRun() (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return RunRecord{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the run history, oldest first
func (s *EventSourceStatistics) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRecord(nil), s.history...)
}

func (s *EventSourceStatistics) add(rec RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Success {
		s.lastSuccessful = &rec
	} else {
		s.lastFailed = &rec
	}

	s.history = append(s.history, rec)
	if over := len(s.history) - MaxRunHistory; over > 0 {
		s.history = append([]RunRecord(nil), s.history[over:]...)
	}
}

// Tracker maps event ids to their statistics
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*EventSourceStatistics
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*EventSourceStatistics)}
}

// GetOrCreate returns the statistics for id, creating them on first use
func (t *Tracker) GetOrCreate(id string) *EventSourceStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[id]
	if !ok {
		s = &EventSourceStatistics{}
		t.stats[id] = s
	}
	return s
}

// Remove forgets the statistics of id
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stats, id)
}

// All returns a snapshot of the tracked ids and their statistics
func (t *Tracker) All() map[string]*EventSourceStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]*EventSourceStatistics, len(t.stats))
	for id, s := range t.stats {
		out[id] = s
	}
	return out
}

// CreateCollector starts collecting one run of id
func (t *Tracker) CreateCollector(id string) *Collector {
	s := t.GetOrCreate(id)
	return &Collector{
		id:          id,
		stats:       s,
		autoStarted: s.AutoStarted(),
		startTime:   time.Now(),
	}
}

// Collector gathers the timings of one run. It is used by a single goroutine.
type Collector struct {
	id          string
	stats       *EventSourceStatistics
	autoStarted bool
	startTime   time.Time
	actions     []Action
	finished    bool
}

// AutoStarted reports whether the run was started by the nightly restarter
func (c *Collector) AutoStarted() bool {
	return c.autoStarted
}

// StartedAction is a running sub-timing; call Done when it completes
type StartedAction struct {
	c      *Collector
	name   string
	detail string
	start  time.Time
	done   bool
}

// StartAction begins a named sub-timing
func (c *Collector) StartAction(name, detail string) *StartedAction {
	return &StartedAction{c: c, name: name, detail: detail, start: time.Now()}
}

// Done records the action's duration. Later calls are ignored.
func (a *StartedAction) Done() {
	if a.done {
		return
	}
	a.done = true
	a.c.AddAction(a.name, a.detail, time.Since(a.start))
}

// AddAction records an already measured sub-timing
func (c *Collector) AddAction(name, detail string, d time.Duration) {
	c.actions = append(c.actions, Action{Name: name, Detail: detail, Duration: d})
}

// Success finalizes the run as successful. Returns false if already finalized.
func (c *Collector) Success() bool {
	return c.finish(true, "", nil)
}

// Failure finalizes the run as failed. Returns false if already finalized.
func (c *Collector) Failure(message string, cause error) bool {
	return c.finish(false, message, cause)
}

func (c *Collector) finish(success bool, message string, cause error) bool {
	if c.finished {
		return false
	}
	c.finished = true

	rec := RunRecord{
		StartTime:   c.startTime,
		Duration:    time.Since(c.startTime),
		Success:     success,
		AutoStarted: c.autoStarted,
		Message:     message,
		Cause:       cause,
		Actions:     append([]Action(nil), c.actions...),
	}
	c.stats.add(rec)

	logger := log.WithEventID(c.id)
	logger.Debug().
		Dur("duration", rec.Duration).
		Bool("success", success).
		Str("actions", formatActions(rec.Actions)).
		Msg("execution finished")
	return true
}

func formatActions(actions []Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
