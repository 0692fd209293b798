/*
Package configurator is the autopilot's external business-logic configurator:
load the live parameter map, validate a proposed map, and commit it
atomically — write temp, fsync, rename, and return the file's SHA-256 hash.
Commits are wrapped with sony/gobreaker the same way pkg/timeseries wraps its
Postgres client, so repeated commit failures short-circuit to an IO-class
error.
*/
package configurator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
)

const component = "configurator"

// Configurator is the file-backed external business-logic parameter store.
type Configurator struct {
	mu      sync.Mutex
	path    string
	breaker *gobreaker.CircuitBreaker
}

// New returns a Configurator committing to path, wrapped in a circuit
// breaker that opens after 5 consecutive commit failures.
func New(path string) *Configurator {
	st := gobreaker.Settings{
		Name:    component,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Configurator{path: path, breaker: gobreaker.NewCircuitBreaker(st)}
}

// Load reads the current parameter map from disk.
func (c *Configurator) Load() (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float64{}, nil
		}
		return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to read configurator file")
	}
	var params map[string]float64
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to parse configurator file")
	}
	return params, nil
}

// Validate checks params for structural soundness: every value must be
// finite and every key non-empty. Business-logic/safety validation of a
// specific change belongs to pkg/optimizer; this is the configurator's own
// narrower load-bearing check before it accepts a commit.
func Validate(params map[string]float64) error {
	for k, v := range params {
		if k == "" {
			return apperr.New(apperr.KindValidationFailure, component, "parameter map contains an empty key")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.New(apperr.KindValidationFailure, component, fmt.Sprintf("parameter %q is not finite", k))
		}
	}
	return nil
}

// Commit atomically writes params to disk and returns the resulting file's
// SHA-256 hash, which callers persist as proof the commit durably landed.
// Wrapped in a circuit breaker: repeated commit failures short-circuit to an
// IO-class error immediately instead of retrying into a stuck filesystem.
func (c *Configurator) Commit(params map[string]float64) (string, error) {
	if err := Validate(params); err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.writeAtomic(params)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return "", apperr.New(apperr.KindIO, component, "configurator circuit breaker open, refusing commit")
		}
		return "", apperr.Wrap(err, apperr.KindIO, component, "failed to commit configurator file")
	}

	hash := result.(string)
	log.WithComponent(component).Info().Str("hash", hash).Int("parameters", len(params)).Msg("committed configurator file")
	return hash, nil
}

func (c *Configurator) writeAtomic(params map[string]float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal parameter map: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create configurator directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".configurator-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp configurator file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp configurator file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to fsync temp configurator file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp configurator file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return "", fmt.Errorf("failed to rename configurator file into place: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
