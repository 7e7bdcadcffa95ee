package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/sources"
	"github.com/cuemby/lookout/pkg/stats"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotEnabled     = errors.New("source is disabled")
	ErrAlreadyRunning = errors.New("source is already running")
	ErrNotRunning     = errors.New("source is not running")
)

// Publisher is the distributor side the manager needs
type Publisher interface {
	source.Publisher
	RemoveByID(id string)
}

// Config holds the collaborators of a Manager
type Config struct {
	Store     storage.Store
	Registry  *sources.Registry
	Publisher Publisher
	Broker    *events.Broker
	Stats     *stats.Tracker
}

// instance is a running (or halted) source
type instance struct {
	runner    *source.Runner
	producer  source.Producer
	closeOnce sync.Once
}

func (i *instance) close(logger zerolog.Logger) {
	i.closeOnce.Do(func() {
		if c, ok := i.producer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close producer")
			}
		}
	})
}

// Manager owns the lifecycle of source instances and the dashboards that
// scope subscriber connections
type Manager struct {
	store     storage.Store
	registry  *sources.Registry
	publisher Publisher
	broker    *events.Broker
	stats     *stats.Tracker
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	instances map[string]*instance

	dashMu     sync.RWMutex
	dashboards map[string]*types.Dashboard
}

// NewManager creates a manager and loads the stored dashboards
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Publisher == nil {
		return nil, errors.New("store and publisher are required")
	}
	if cfg.Registry == nil {
		cfg.Registry = sources.DefaultRegistry()
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewTracker()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:      cfg.Store,
		registry:   cfg.Registry,
		publisher:  cfg.Publisher,
		broker:     cfg.Broker,
		stats:      cfg.Stats,
		logger:     log.WithComponent("manager"),
		ctx:        ctx,
		cancel:     cancel,
		instances:  make(map[string]*instance),
		dashboards: make(map[string]*types.Dashboard),
	}

	dashboards, err := cfg.Store.ListDashboards()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load dashboards: %w", err)
	}
	for _, d := range dashboards {
		m.dashboards[d.ID] = d
	}

	return m, nil
}

// Stats returns the run statistics tracker
func (m *Manager) Stats() *stats.Tracker {
	return m.stats
}

// PublishEvent publishes a lifecycle notification, if a broker is configured
func (m *Manager) PublishEvent(event *events.Event) {
	if m.broker != nil {
		m.broker.Publish(event)
	}
}

// Source operations

// SaveSource validates and stores a source. A running source is restarted
// with the new settings; disabling a source stops it.
func (m *Manager) SaveSource(src *types.SourceInstance) error {
	if err := src.Validate(); err != nil {
		return err
	}
	probe, err := m.registry.Build(src)
	if err != nil {
		return err
	}
	(&instance{producer: probe}).close(m.logger)

	now := time.Now()
	existing, err := m.GetSource(src.ID)
	switch {
	case err == nil:
		src.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrNotFound):
		src.CreatedAt = now
	default:
		return err
	}
	src.UpdatedAt = now

	if err := m.store.UpdateSource(src); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	eventType := events.EventSourceCreated
	if existing != nil {
		eventType = events.EventSourceUpdated
	}
	m.PublishEvent(&events.Event{Type: eventType, SubjectID: src.ID, Message: src.Name})

	if m.IsRunning(src.ID) {
		if err := m.StopSource(src.ID); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
		if src.Enabled {
			return m.StartSource(src.ID, false)
		}
	}
	return nil
}

// GetSource returns a stored source
func (m *Manager) GetSource(id string) (*types.SourceInstance, error) {
	src, err := m.store.GetSource(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return src, err
}

// ListSources returns all stored sources ordered by id
func (m *Manager) ListSources() ([]*types.SourceInstance, error) {
	list, err := m.store.ListSources()
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// SetEnabled enables or disables a source. Disabling stops it.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	src, err := m.GetSource(id)
	if err != nil {
		return err
	}
	src.Enabled = enabled
	return m.SaveSource(src)
}

// DeleteSource stops a source and forgets it, its cached event and its statistics
func (m *Manager) DeleteSource(id string) error {
	if _, err := m.GetSource(id); err != nil {
		return err
	}
	if err := m.StopSource(id); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	m.mu.Lock()
	if inst, ok := m.instances[id]; ok {
		inst.close(m.logger)
		delete(m.instances, id)
	}
	m.mu.Unlock()

	if err := m.store.DeleteSource(id); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	m.publisher.RemoveByID(id)
	m.stats.Remove(id)

	m.PublishEvent(&events.Event{Type: events.EventSourceRemoved, SubjectID: id})
	return nil
}

// Lifecycle operations

// StartSource starts an enabled source that is not running. autoStarted marks
// starts made by the nightly restarter.
func (m *Manager) StartSource(id string, autoStarted bool) error {
	src, err := m.GetSource(id)
	if err != nil {
		return err
	}
	if !src.Enabled {
		return fmt.Errorf("source %s: %w", id, ErrNotEnabled)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.instances[id]; ok {
		if old.runner.State() == source.StateRunning {
			return fmt.Errorf("source %s: %w", id, ErrAlreadyRunning)
		}
		old.close(m.logger)
		delete(m.instances, id)
	}

	producer, err := m.registry.Build(src)
	if err != nil {
		return err
	}

	m.stats.GetOrCreate(id).SetAutoStarted(autoStarted)

	inst := &instance{producer: producer}
	inst.runner = source.NewRunner(source.RunnerConfig{
		EventID:   id,
		Frequency: src.Frequency,
		Producer:  producer,
		Publisher: m.publisher,
		Stats:     m.stats,
		OnHalt: func(eventID string, v source.Verdict) {
			m.onHalt(inst, eventID, v)
		},
	})
	if err := inst.runner.Start(m.ctx); err != nil {
		inst.close(m.logger)
		return err
	}
	m.instances[id] = inst

	m.logger.Info().Str("event_id", id).Bool("auto_started", autoStarted).Msg("Source started")
	m.PublishEvent(&events.Event{
		Type:      events.EventSourceStarted,
		SubjectID: id,
		Metadata:  map[string]string{"autoStarted": fmt.Sprint(autoStarted)},
	})
	return nil
}

// StopSource stops a running source and waits for its current iteration
func (m *Manager) StopSource(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok || inst.runner.State() != source.StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("source %s: %w", id, ErrNotRunning)
	}
	delete(m.instances, id)
	m.mu.Unlock()

	inst.runner.Stop()
	inst.runner.Wait()
	inst.close(m.logger)

	m.PublishEvent(&events.Event{Type: events.EventSourceStopped, SubjectID: id})
	return nil
}

// RestartSource stops the source if it runs and starts it again
func (m *Manager) RestartSource(id string) error {
	if err := m.StopSource(id); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return m.StartSource(id, false)
}

// TriggerSource runs the next iteration of a running source immediately
func (m *Manager) TriggerSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok || inst.runner.State() != source.StateRunning {
		return fmt.Errorf("source %s: %w", id, ErrNotRunning)
	}
	inst.runner.TriggerNow()
	return nil
}

// onHalt runs on the runner goroutine after the failure policy stopped it
func (m *Manager) onHalt(inst *instance, id string, v source.Verdict) {
	inst.close(m.logger)

	m.logger.Warn().
		Str("event_id", id).
		Str("reason", string(v.Reason)).
		Int("failures", v.Failures).
		Msg("Source stopped because of errors")
	m.PublishEvent(&events.Event{
		Type:      events.EventSourceHalted,
		SubjectID: id,
		Message:   string(v.Reason),
		Metadata:  map[string]string{"failures": fmt.Sprint(v.Failures)},
	})
}

// StartAll starts every enabled source that is not running
func (m *Manager) StartAll() {
	list, err := m.ListSources()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list sources")
		return
	}
	for _, src := range list {
		if !src.Enabled || m.IsRunning(src.ID) {
			continue
		}
		if err := m.StartSource(src.ID, false); err != nil {
			m.logger.Error().Err(err).Str("event_id", src.ID).Msg("Failed to start source")
		}
	}
}

// StopAll stops every running source and waits for them
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopping := make(map[string]*instance, len(m.instances))
	for id, inst := range m.instances {
		stopping[id] = inst
		inst.runner.Stop()
	}
	m.instances = make(map[string]*instance)
	m.mu.Unlock()

	for _, inst := range stopping {
		inst.runner.Wait()
		inst.close(m.logger)
	}
}

// Shutdown stops all sources
func (m *Manager) Shutdown() error {
	m.StopAll()
	m.cancel()
	return nil
}

// Enablement

// List returns the ids of all stored sources
func (m *Manager) List() []string {
	list, err := m.ListSources()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list sources")
		return nil
	}
	ids := make([]string, len(list))
	for i, src := range list {
		ids[i] = src.ID
	}
	return ids
}

// IsEnabled reports whether a stored source is enabled
func (m *Manager) IsEnabled(id string) bool {
	src, err := m.GetSource(id)
	return err == nil && src.Enabled
}

// IsRunning reports whether a source's runner is running
func (m *Manager) IsRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	return ok && inst.runner.State() == source.StateRunning
}

// Start implements nightly.Enablement
func (m *Manager) Start(id string, autoStarted bool) error {
	return m.StartSource(id, autoStarted)
}
