package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vvtv/autopilot/pkg/types"
)

const keyTimeLayout = "20060102T150405.000000000Z07:00"

var (
	bucketCycles   = []byte("cycles")
	bucketDeployEv = []byte("deployment_events")
)

// BoltStore implements Store using BoltDB, with a bucket-per-entity layout:
// one bucket per artifact kind, JSON-marshaled values keyed for ordered
// iteration.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "autopilot.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCycles, bucketDeployEv} {
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

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveCycleRecord upserts a cycle's audit record, keyed by ID so repeated
// saves during a single cycle's lifetime (start, then finish) overwrite.
func (s *BoltStore) SaveCycleRecord(record *types.CycleRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCycles)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(cycleKey(record.ID, record.StartedAt), data)
	})
}

// GetCycleRecord scans for a cycle record by ID. Records are keyed by
// timestamp-prefixed ID for ordered iteration, so this is a linear scan; use
// ListCycleRecords for the common "most recent N" access pattern.
func (s *BoltStore) GetCycleRecord(id string) (*types.CycleRecord, error) {
	var found *types.CycleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCycles)
		return b.ForEach(func(k, v []byte) error {
			var record types.CycleRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.ID == id {
				found = &record
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("cycle record not found: %s", id)
	}
	return found, nil
}

// ListCycleRecords returns the most recent limit cycle records, newest
// first. A limit of 0 returns every record.
func (s *BoltStore) ListCycleRecords(limit int) ([]*types.CycleRecord, error) {
	var records []*types.CycleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCycles)
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var record types.CycleRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	return records, err
}

// AppendDeploymentEvent writes one event to the append-only log, keyed by
// deployment ID + timestamp so ListDeploymentEvents can prefix-scan.
func (s *BoltStore) AppendDeploymentEvent(event DeploymentEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployEv)
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put(eventKey(event.DeploymentID, event.Timestamp), data)
	})
}

// ListDeploymentEvents returns every event recorded for deploymentID, oldest
// first.
func (s *BoltStore) ListDeploymentEvents(deploymentID string) ([]DeploymentEvent, error) {
	var events []DeploymentEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployEv)
		prefix := []byte(deploymentID + "/")
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var event DeploymentEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events, nil
}

func cycleKey(id string, startedAt time.Time) []byte {
	return []byte(startedAt.UTC().Format(keyTimeLayout) + "/" + id)
}

func eventKey(deploymentID string, ts time.Time) []byte {
	return []byte(deploymentID + "/" + ts.UTC().Format(keyTimeLayout))
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
