package types

import (
	"errors"
	"fmt"
	"time"
)

// SourceInstance is a configured event source: one producer kind bound to one
// event id and frequency
type SourceInstance struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Kind       string            `json:"kind" yaml:"kind"` // producer kind: http, sql, redis, clock
	Frequency  time.Duration     `json:"frequency" yaml:"frequency"`
	Enabled    bool              `json:"enabled" yaml:"enabled"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time         `json:"updatedAt" yaml:"-"`
}

// Property returns a property value or def when it is unset
func (s *SourceInstance) Property(key, def string) string {
	if v, ok := s.Properties[key]; ok && v != "" {
		return v
	}
	return def
}

// Validate checks the fields every source needs
func (s *SourceInstance) Validate() error {
	if s.ID == "" {
		return errors.New("source id is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("source %s: kind is required", s.ID)
	}
	if s.Frequency < 0 {
		return fmt.Errorf("source %s: frequency must not be negative", s.ID)
	}
	return nil
}

// Dashboard groups widgets, each showing the events of one source
type Dashboard struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Widgets   []Widget  `json:"widgets" yaml:"widgets"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Widget shows the events of one source on a dashboard
type Widget struct {
	Name     string `json:"name" yaml:"name"`
	SourceID string `json:"source" yaml:"source"`
}

// Contains reports whether a widget on the dashboard shows eventID
func (d *Dashboard) Contains(eventID string) bool {
	for _, w := range d.Widgets {
		if w.SourceID == eventID {
			return true
		}
	}
	return false
}

// EventIDs returns the distinct source ids shown on the dashboard
func (d *Dashboard) EventIDs() []string {
	seen := make(map[string]bool, len(d.Widgets))
	ids := make([]string, 0, len(d.Widgets))
	for _, w := range d.Widgets {
		if !seen[w.SourceID] {
			seen[w.SourceID] = true
			ids = append(ids, w.SourceID)
		}
	}
	return ids
}

// Validate checks the dashboard id and widgets
func (d *Dashboard) Validate() error {
	if d.ID == "" {
		return errors.New("dashboard id is required")
	}
	for i, w := range d.Widgets {
		if w.SourceID == "" {
			return fmt.Errorf("dashboard %s: widget %d has no source", d.ID, i)
		}
	}
	return nil
}
