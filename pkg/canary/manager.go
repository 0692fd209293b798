/*
Package canary implements the canary deployment manager: the component that
rolls a proposed parameter change out to a slice of traffic, watches its
KPIs against control, and decides whether to promote, roll back, or extend
monitoring.
*/
package canary

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/types"
)

const component = "canary"

// Manager owns every ActiveCanaryDeployment and the shared metrics
// collector. All mutating operations take the manager's mutex, matching the
// single-writer discipline of pkg/bounds.Manager.
type Manager struct {
	mu          sync.Mutex
	cfg         Config
	collector   MetricsCollector
	rnd         *rand.Rand
	deployments map[string]*types.ActiveCanaryDeployment
}

// New builds a Manager reading cohort samples from collector.
func New(cfg Config, collector MetricsCollector) *Manager {
	return &Manager{
		cfg:         cfg,
		collector:   collector,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		deployments: make(map[string]*types.ActiveCanaryDeployment),
	}
}

// StartDeployment begins a new canary for the given parameter changes.
func (m *Manager) StartDeployment(id string, changes []types.ParameterChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, d := range m.deployments {
		if d.Status.IsActive() {
			active++
		}
	}
	if active >= m.cfg.MaxConcurrentDeployments {
		return apperr.New(apperr.KindCanaryFailure, component,
			fmt.Sprintf("maximum concurrent deployments (%d) exceeded", m.cfg.MaxConcurrentDeployments))
	}
	if err := validateParameterChanges(changes); err != nil {
		return err
	}

	now := time.Now().UTC()
	deployment := &types.ActiveCanaryDeployment{
		ID:               id,
		ParameterChanges: changes,
		Status:           types.DeploymentInitializing,
		StartTime:        now,
		EndTime:          now.Add(m.cfg.Duration),
		Split: types.TrafficSplit{
			CanaryPct: m.cfg.CanaryTrafficPercentage, ControlPct: 1.0 - m.cfg.CanaryTrafficPercentage,
			Strategy: types.RoutingHashBased, SplitKey: "canary_" + id,
		},
	}
	m.deployments[id] = deployment
	deployment.Status = types.DeploymentRunning

	metrics.CanaryDeploymentsTotal.WithLabelValues(string(types.DeploymentRunning)).Inc()
	metrics.CanaryActiveDeployments.Inc()
	log.WithDeploymentID(id).Info().Int("parameter_changes", len(changes)).Msg("started canary deployment")
	return nil
}

func validateParameterChanges(changes []types.ParameterChange) error {
	if len(changes) == 0 {
		return apperr.New(apperr.KindValidationFailure, component, "no parameter changes supplied")
	}
	for _, c := range changes {
		if c.Parameter == "" {
			return apperr.New(apperr.KindValidationFailure, component, "parameter change missing a name")
		}
	}
	return nil
}

// Get returns a copy of the deployment's current state.
func (m *Manager) Get(id string) (types.ActiveCanaryDeployment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return types.ActiveCanaryDeployment{}, false
	}
	return *d, true
}

// ListActive returns every deployment not yet in a terminal state.
func (m *Manager) ListActive() []types.ActiveCanaryDeployment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ActiveCanaryDeployment
	for _, d := range m.deployments {
		if !d.Status.IsTerminal() {
			out = append(out, *d)
		}
	}
	return out
}

// CheckTimeout reports whether an active deployment has run past its
// planned end time without reaching a terminal state.
func (m *Manager) CheckTimeout(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return false, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	return time.Now().UTC().After(d.EndTime) && d.Status.IsActive(), nil
}

// Rollback reverts a deployment and records why.
func (m *Manager) Rollback(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	d.Status = types.DeploymentRolledBack
	d.RollbackReason = reason
	metrics.CanaryActiveDeployments.Dec()
	metrics.CanaryDecisionsTotal.WithLabelValues(string(types.DecisionRollback)).Inc()
	log.WithDeploymentID(id).Warn().Str("reason", reason).Msg("rolled back canary deployment")
	return nil
}

// Complete promotes a deployment's parameter changes to full traffic.
func (m *Manager) Complete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	d.Status = types.DeploymentCompleted
	metrics.CanaryActiveDeployments.Dec()
	metrics.CanaryDecisionsTotal.WithLabelValues(string(types.DecisionProceed)).Inc()
	metrics.CanaryDeploymentDuration.Observe(time.Since(d.StartTime).Seconds())
	log.WithDeploymentID(id).Info().Msg("promoted canary deployment to full traffic")
	return nil
}

// RouteTraffic decides which cohort routingKey belongs to for the given
// deployment.
func (m *Manager) RouteTraffic(id, routingKey string) (types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return types.GroupControl, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	if !d.Status.IsActive() {
		return types.GroupControl, nil
	}

	switch d.Split.Strategy {
	case types.RoutingHashBased:
		h := hashRoutingKey(routingKey, d.Split.SplitKey)
		normalized := float64(h%100) / 100.0
		if normalized < d.Split.CanaryPct {
			return types.GroupCanary, nil
		}
		return types.GroupControl, nil

	case types.RoutingRandom:
		if m.rnd.Float64() < d.Split.CanaryPct {
			return types.GroupCanary, nil
		}
		return types.GroupControl, nil

	default:
		return types.GroupControl, nil
	}
}

func hashRoutingKey(routingKey, splitKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(routingKey))
	h.Write([]byte(splitKey))
	return h.Sum64()
}

// CleanupOld discards terminal deployments older than the configured
// retention window.
func (m *Manager) CleanupOld() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-time.Duration(m.cfg.RetentionHours) * time.Hour)
	removed := 0
	for id, d := range m.deployments {
		if d.Status.IsTerminal() && d.StartTime.Before(cutoff) {
			delete(m.deployments, id)
			removed++
		}
	}
	return removed
}
