package manager

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/cuemby/lookout/pkg/types"
)

// SaveDashboard validates and stores a dashboard. Connections scoped to it see
// the new widget set on their next delivery.
func (m *Manager) SaveDashboard(d *types.Dashboard) error {
	if err := d.Validate(); err != nil {
		return err
	}

	now := time.Now()
	m.dashMu.Lock()
	defer m.dashMu.Unlock()

	if existing, ok := m.dashboards[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	} else {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	if err := m.store.UpdateDashboard(d); err != nil {
		return fmt.Errorf("failed to save dashboard: %w", err)
	}
	m.dashboards[d.ID] = d

	m.PublishEvent(&events.Event{Type: events.EventDashboardSaved, SubjectID: d.ID, Message: d.Title})
	return nil
}

// GetDashboard returns a dashboard
func (m *Manager) GetDashboard(id string) (*types.Dashboard, error) {
	m.dashMu.RLock()
	defer m.dashMu.RUnlock()

	d, ok := m.dashboards[id]
	if !ok {
		return nil, fmt.Errorf("dashboard %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// ListDashboards returns all dashboards ordered by id
func (m *Manager) ListDashboards() []*types.Dashboard {
	m.dashMu.RLock()
	defer m.dashMu.RUnlock()

	list := make([]*types.Dashboard, 0, len(m.dashboards))
	for _, d := range m.dashboards {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// DeleteDashboard removes a dashboard
func (m *Manager) DeleteDashboard(id string) error {
	m.dashMu.Lock()
	defer m.dashMu.Unlock()

	if _, ok := m.dashboards[id]; !ok {
		return fmt.Errorf("dashboard %s: %w", id, ErrNotFound)
	}
	if err := m.store.DeleteDashboard(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	delete(m.dashboards, id)
	return nil
}

// DashboardIDs returns the ids of all dashboards
func (m *Manager) DashboardIDs() []string {
	list := m.ListDashboards()
	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	return ids
}

// ScopeFor returns the scope of a connection opened for a dashboard. The
// widget set is read at every check, so dashboard edits apply to open
// connections.
func (m *Manager) ScopeFor(dashboardID string) (distributor.Scope, error) {
	if _, err := m.GetDashboard(dashboardID); err != nil {
		return nil, err
	}
	return distributor.ScopeFunc(func(eventID string) bool {
		d, err := m.GetDashboard(dashboardID)
		return err == nil && d.Contains(eventID)
	}), nil
}

// Publish forwards e to the distributor. A reload broadcast is also announced
// on the broker. It implements nightly.Publisher.
func (m *Manager) Publish(e event.Event) {
	m.publisher.Publish(e)
	if e.Kind == event.KindReload {
		m.PublishEvent(&events.Event{
			Type:     events.EventDashboardReload,
			Metadata: map[string]string{"dashboards": strings.Join(e.Dashboards, ",")},
		})
	}
}
