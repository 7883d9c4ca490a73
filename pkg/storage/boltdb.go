package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketClusters = []byte("clusters")
	bucketHosts    = []byte("hosts")
	bucketTasks    = []byte("tasks")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "burrow-lab.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketClusters, bucketHosts, bucketTasks} {
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

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Cluster operations
func (s *BoltStore) PutCluster(cluster *types.ClusterState) error {
	return s.put(bucketClusters, cluster.Name, cluster)
}

func (s *BoltStore) GetCluster(name string) (*types.ClusterState, error) {
	var cluster types.ClusterState
	if err := s.get(bucketClusters, name, &cluster); err != nil {
		return nil, fmt.Errorf("cluster %s: %w", name, err)
	}
	return &cluster, nil
}

func (s *BoltStore) ListClusters() ([]*types.ClusterState, error) {
	var clusters []*types.ClusterState
	err := s.forEach(bucketClusters, func(v []byte) error {
		var cluster types.ClusterState
		if err := json.Unmarshal(v, &cluster); err != nil {
			return err
		}
		clusters = append(clusters, &cluster)
		return nil
	})
	return clusters, err
}

// Host operations
func (s *BoltStore) PutHost(host *types.HostState) error {
	return s.put(bucketHosts, host.ID, host)
}

func (s *BoltStore) GetHost(id string) (*types.HostState, error) {
	var host types.HostState
	if err := s.get(bucketHosts, id, &host); err != nil {
		return nil, fmt.Errorf("host %s: %w", id, err)
	}
	return &host, nil
}

func (s *BoltStore) ListHosts() ([]*types.HostState, error) {
	var hosts []*types.HostState
	err := s.forEach(bucketHosts, func(v []byte) error {
		var host types.HostState
		if err := json.Unmarshal(v, &host); err != nil {
			return err
		}
		hosts = append(hosts, &host)
		return nil
	})
	return hosts, err
}

func (s *BoltStore) DeleteHost(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).Delete([]byte(id))
	})
}

// Task operations
func (s *BoltStore) PutTask(task *types.TaskRecord) error {
	return s.put(bucketTasks, task.Task.ID, task)
}

func (s *BoltStore) GetTask(id string) (*types.TaskRecord, error) {
	var task types.TaskRecord
	if err := s.get(bucketTasks, id, &task); err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return &task, nil
}

func (s *BoltStore) ListTasks() ([]*types.TaskRecord, error) {
	var tasks []*types.TaskRecord
	err := s.forEach(bucketTasks, func(v []byte) error {
		var task types.TaskRecord
		if err := json.Unmarshal(v, &task); err != nil {
			return err
		}
		tasks = append(tasks, &task)
		return nil
	})
	return tasks, err
}

func (s *BoltStore) put(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) forEach(bucket []byte, fn func(v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			return fn(v)
		})
	})
}
