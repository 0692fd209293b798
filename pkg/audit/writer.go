package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vvtv/autopilot/pkg/types"
)

// Writer is the durable Sink for audit events, plus the per-cycle JSON
// record and append-only deployment-log writers that form the system of
// record (pkg/storage's BoltStore only indexes these for query).
type Writer struct {
	mu      sync.Mutex
	dataDir string
	logFile *os.File
}

// NewWriter opens (creating if absent) dataDir/audit.log for append and
// ensures dataDir/cycles and dataDir/deployments exist.
func NewWriter(dataDir string) (*Writer, error) {
	for _, sub := range []string{"cycles", "deployments"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	f, err := os.OpenFile(filepath.Join(dataDir, "audit.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Writer{dataDir: dataDir, logFile: f}, nil
}

// Write appends event as one JSON line to the audit log.
func (w *Writer) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.logFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return w.logFile.Sync()
}

// WriteCycleRecord persists record as dataDir/cycles/<id>.json, using the
// same tmp-write-fsync-rename idiom as pkg/bounds's snapshot store so a
// crash mid-write never leaves a corrupt cycle record.
func (w *Writer) WriteCycleRecord(record *types.CycleRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cycle record: %w", err)
	}

	dir := filepath.Join(w.dataDir, "cycles")
	target := filepath.Join(dir, record.ID+".json")

	tmp, err := os.CreateTemp(dir, ".cycle-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cycle record file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp cycle record file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to fsync temp cycle record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cycle record file: %w", err)
	}
	return os.Rename(tmpPath, target)
}

// AppendDeploymentLog appends one line to
// dataDir/deployments/<deploymentID>.jsonl, the durable per-deployment event
// log the storage package's BoltStore index mirrors.
func (w *Writer) AppendDeploymentLog(deploymentID string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment log entry: %w", err)
	}

	path := filepath.Join(w.dataDir, "deployments", deploymentID+".jsonl")
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open deployment log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append deployment log entry: %w", err)
	}
	return f.Sync()
}

// Close flushes and closes the audit log file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logFile.Close()
}
