package manager

import (
	"time"

	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/stats"
	"github.com/cuemby/lookout/pkg/types"
)

// Run is the API view of a stats.RunRecord
type Run struct {
	StartTime   time.Time      `json:"startTime"`
	Duration    time.Duration  `json:"duration"`
	Success     bool           `json:"success"`
	AutoStarted bool           `json:"automaticallyStarted"`
	Message     string         `json:"message,omitempty"`
	Cause       string         `json:"cause,omitempty"`
	Actions     []stats.Action `json:"actions,omitempty"`
}

func newRun(r stats.RunRecord) *Run {
	return &Run{
		StartTime:   r.StartTime,
		Duration:    r.Duration,
		Success:     r.Success,
		AutoStarted: r.AutoStarted,
		Message:     r.Message,
		Cause:       r.CauseText(),
		Actions:     r.Actions,
	}
}

// SourceStatus combines a stored source with its runtime state and statistics
type SourceStatus struct {
	Source                *types.SourceInstance `json:"source"`
	State                 source.State          `json:"state"`
	StoppedBecauseOfError bool                  `json:"stoppedBecauseOfError"`
	HaltReason            source.HaltReason     `json:"haltReason,omitempty"`
	ConsecutiveFailures   int                   `json:"consecutiveFailures"`
	AutoStarted           bool                  `json:"automaticallyStarted"`
	LastRun               *Run                  `json:"lastRun,omitempty"`
	LastSuccessfulRun     *Run                  `json:"lastSuccessfulRun,omitempty"`
	LastFailedRun         *Run                  `json:"lastFailedRun,omitempty"`
	History               []*Run                `json:"history"`
}

// Status returns the status of one source
func (m *Manager) Status(id string) (*SourceStatus, error) {
	src, err := m.GetSource(id)
	if err != nil {
		return nil, err
	}
	return m.status(src), nil
}

// Statuses returns the status of every source ordered by id
func (m *Manager) Statuses() ([]*SourceStatus, error) {
	list, err := m.ListSources()
	if err != nil {
		return nil, err
	}
	out := make([]*SourceStatus, len(list))
	for i, src := range list {
		out[i] = m.status(src)
	}
	return out, nil
}

func (m *Manager) status(src *types.SourceInstance) *SourceStatus {
	st := &SourceStatus{Source: src, State: source.StateStopped}

	m.mu.Lock()
	if inst, ok := m.instances[src.ID]; ok {
		st.State = inst.runner.State()
		st.StoppedBecauseOfError = inst.runner.StoppedBecauseOfError()
		st.HaltReason = inst.runner.HaltVerdict().Reason
		st.ConsecutiveFailures = inst.runner.ConsecutiveFailures()
	}
	m.mu.Unlock()

	s := m.stats.GetOrCreate(src.ID)
	st.AutoStarted = s.AutoStarted()
	if r, ok := s.LastRun(); ok {
		st.LastRun = newRun(r)
	}
	if r, ok := s.LastSuccessfulRun(); ok {
		st.LastSuccessfulRun = newRun(r)
	}
	if r, ok := s.LastFailedRun(); ok {
		st.LastFailedRun = newRun(r)
	}
	history := s.History()
	st.History = make([]*Run, len(history))
	for i, r := range history {
		st.History[i] = newRun(r)
	}
	return st
}
