package bounds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vvtv/autopilot/pkg/types"
)

// Snapshot is the sliding bounds manager's persisted state: every
// parameter's bounds plus the shared adjustment history.
type Snapshot struct {
	Bounds  map[string]types.ParameterBounds `json:"bounds"`
	History []types.BoundsAdjustment         `json:"history"`
}

// SnapshotStore persists a Snapshot to a single JSON file using an atomic
// tmp-write-fsync-rename sequence.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore returns a SnapshotStore writing to dataDir/bounds.json.
func NewSnapshotStore(dataDir string) *SnapshotStore {
	return &SnapshotStore{path: filepath.Join(dataDir, "bounds.json")}
}

// Save atomically overwrites the snapshot file: write to a temp file in the
// same directory, fsync, then rename over the target so a crash never
// observes a partially-written snapshot.
func (s *SnapshotStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bounds snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".bounds-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to fsync temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads the snapshot file, returning ok=false if it does not yet exist.
func (s *SnapshotStore) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot file: %w", err)
	}
	return snap, true, nil
}
