package manager

import (
	"github.com/cuemby/lookout/pkg/source"
)

// StateDisabled labels stored sources that are switched off
const StateDisabled = "disabled"

// SourceStates counts the stored sources per runtime state. It implements
// metrics.SourceReporter.
func (m *Manager) SourceStates() map[string]int {
	counts := map[string]int{
		string(source.StateRunning): 0,
		string(source.StateStopped): 0,
		string(source.StateHalted):  0,
		StateDisabled:               0,
	}

	list, err := m.ListSources()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list sources for metrics")
		return counts
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range list {
		state := string(source.StateStopped)
		if inst, ok := m.instances[src.ID]; ok {
			state = string(inst.runner.State())
		} else if !src.Enabled {
			state = StateDisabled
		}
		counts[state]++
	}
	return counts
}
