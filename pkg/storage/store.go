package storage

import (
	"errors"

	"github.com/cuemby/lookout/pkg/types"
)

// ErrNotFound is returned when a resource does not exist
var ErrNotFound = errors.New("not found")

// Store persists source instances and dashboards
type Store interface {
	// Sources
	CreateSource(source *types.SourceInstance) error
	GetSource(id string) (*types.SourceInstance, error)
	ListSources() ([]*types.SourceInstance, error)
	UpdateSource(source *types.SourceInstance) error
	DeleteSource(id string) error

	// Dashboards
	CreateDashboard(dashboard *types.Dashboard) error
	GetDashboard(id string) (*types.Dashboard, error)
	ListDashboards() ([]*types.Dashboard, error)
	UpdateDashboard(dashboard *types.Dashboard) error
	DeleteDashboard(id string) error

	// Utility
	Close() error
}
