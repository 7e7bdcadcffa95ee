package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSources    = []byte("sources")
	bucketDashboards = []byte("dashboards")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) lookout.db in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "lookout.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSources, bucketDashboards} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	metrics.RegisterComponent(metrics.ComponentStorage, true, "")
	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	metrics.UpdateComponent(metrics.ComponentStorage, false, "closed")
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, id string, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
}

func (s *BoltStore) get(bucket []byte, id string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) delete(bucket []byte, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

// Source operations
func (s *BoltStore) CreateSource(source *types.SourceInstance) error {
	return s.put(bucketSources, source.ID, source)
}

func (s *BoltStore) GetSource(id string) (*types.SourceInstance, error) {
	var source types.SourceInstance
	if err := s.get(bucketSources, id, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *BoltStore) ListSources() ([]*types.SourceInstance, error) {
	var sources []*types.SourceInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSources).ForEach(func(k, v []byte) error {
			var source types.SourceInstance
			if err := json.Unmarshal(v, &source); err != nil {
				return err
			}
			sources = append(sources, &source)
			return nil
		})
	})
	return sources, err
}

func (s *BoltStore) UpdateSource(source *types.SourceInstance) error {
	return s.CreateSource(source) // upsert
}

func (s *BoltStore) DeleteSource(id string) error {
	return s.delete(bucketSources, id)
}

// Dashboard operations
func (s *BoltStore) CreateDashboard(dashboard *types.Dashboard) error {
	return s.put(bucketDashboards, dashboard.ID, dashboard)
}

func (s *BoltStore) GetDashboard(id string) (*types.Dashboard, error) {
	var dashboard types.Dashboard
	if err := s.get(bucketDashboards, id, &dashboard); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

func (s *BoltStore) ListDashboards() ([]*types.Dashboard, error) {
	var dashboards []*types.Dashboard
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDashboards).ForEach(func(k, v []byte) error {
			var dashboard types.Dashboard
			if err := json.Unmarshal(v, &dashboard); err != nil {
				return err
			}
			dashboards = append(dashboards, &dashboard)
			return nil
		})
	})
	return dashboards, err
}

func (s *BoltStore) UpdateDashboard(dashboard *types.Dashboard) error {
	return s.CreateDashboard(dashboard) // upsert
}

func (s *BoltStore) DeleteDashboard(id string) error {
	return s.delete(bucketDashboards, id)
}
