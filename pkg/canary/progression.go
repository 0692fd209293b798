package canary

import (
	"context"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// ExecuteDecision acts on a decision already recorded for the deployment:
// Proceed completes the rollout, Rollback reverts it, and Inconclusive
// either extends the monitoring window or, once the extension budget is
// spent, asks for manual review.
func (m *Manager) ExecuteDecision(id string) (types.DeploymentProgression, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	if !ok {
		m.mu.Unlock()
		return types.DeploymentProgression{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	decision := d.LatestDecision
	m.mu.Unlock()

	if decision == nil {
		return types.DeploymentProgression{}, apperr.New(apperr.KindCanaryFailure, component,
			"deployment has no recorded decision to execute: "+id)
	}

	switch decision.Verdict {
	case types.DecisionProceed:
		if err := m.Complete(id); err != nil {
			return types.DeploymentProgression{}, err
		}
		return types.DeploymentProgression{
			DeploymentID: id, ActionTaken: "completed", NewStatus: types.DeploymentCompleted, Decision: decision,
		}, nil

	case types.DecisionRollback:
		if err := m.Rollback(id, decision.Rationale); err != nil {
			return types.DeploymentProgression{}, err
		}
		return types.DeploymentProgression{
			DeploymentID: id, ActionTaken: "rolled_back", NewStatus: types.DeploymentRolledBack, Decision: decision,
		}, nil

	case types.DecisionInconclusive:
		return m.extendOrEscalate(id, decision)

	default:
		return types.DeploymentProgression{}, apperr.New(apperr.KindCanaryFailure, component,
			"unknown decision verdict: "+string(decision.Verdict))
	}
}

func (m *Manager) extendOrEscalate(id string, decision *types.CanaryDecision) (types.DeploymentProgression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return types.DeploymentProgression{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}

	if d.ExtensionCount >= maxExtensions {
		d.Status = types.DeploymentFailed
		log.WithDeploymentID(id).Warn().Msg("canary deployment exhausted extension budget, escalating to manual review")
		return types.DeploymentProgression{
			DeploymentID: id, ActionTaken: "escalated_for_manual_review", NewStatus: types.DeploymentFailed, Decision: decision,
		}, nil
	}

	d.ExtensionCount++
	d.EndTime = d.EndTime.Add(m.cfg.Duration / 2)
	d.Status = types.DeploymentCollectingMetrics
	log.WithDeploymentID(id).Info().Int("extension", d.ExtensionCount).Time("new_end_time", d.EndTime).
		Msg("extended canary monitoring window")
	return types.DeploymentProgression{
		DeploymentID: id, ActionTaken: "extended_monitoring", NewStatus: types.DeploymentCollectingMetrics,
		Decision: decision, NextCheckTime: d.EndTime,
	}, nil
}

// ShouldProcessDeployment reports whether a deployment is due for another
// collect-evaluate-execute pass: active and either past its end time or
// never yet evaluated.
func (m *Manager) ShouldProcessDeployment(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return false, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	if !d.Status.IsActive() {
		return false, nil
	}
	now := time.Now().UTC()
	return d.Status == types.DeploymentAnalyzing || now.After(d.EndTime) || d.LatestDecision == nil, nil
}

// ProcessActiveDeployments runs one collect→evaluate→execute pass over every
// deployment due for processing. Per-deployment failures are logged and
// skipped rather than aborting the whole pass, matching the cycle
// controller's Skip-on-best-effort policy.
func (m *Manager) ProcessActiveDeployments(ctx context.Context, store timeseries.Store) []types.DeploymentProgression {
	var progressions []types.DeploymentProgression
	for _, d := range m.ListActive() {
		due, err := m.ShouldProcessDeployment(d.ID)
		if err != nil || !due {
			continue
		}

		summary, err := m.CollectMetrics(ctx, store, d.ID)
		if err != nil {
			log.WithDeploymentID(d.ID).Warn().Err(err).Msg("skipping canary deployment this cycle, metrics not ready")
			continue
		}

		if _, err := m.Evaluate(d.ID, summary); err != nil {
			log.WithDeploymentID(d.ID).Error().Err(err).Msg("failed to evaluate canary deployment")
			continue
		}

		progression, err := m.ExecuteDecision(d.ID)
		if err != nil {
			log.WithDeploymentID(d.ID).Error().Err(err).Msg("failed to execute canary decision")
			continue
		}
		progressions = append(progressions, progression)
	}
	return progressions
}

// ManualOverrideDecision lets an operator force a verdict outside the normal
// gate evaluation. The override is recorded as the deployment's latest
// decision so ExecuteDecision applies it through the ordinary progression
// path.
func (m *Manager) ManualOverrideDecision(id string, verdict types.DecisionVerdict, reason string) error {
	m.mu.Lock()
	d, ok := m.deployments[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	d.LatestDecision = &types.CanaryDecision{
		Verdict: verdict, Confidence: 1.0, Rationale: "manual override: " + reason,
		Recommendation: types.RecommendManualReview, Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	log.WithDeploymentID(id).Warn().Str("verdict", string(verdict)).Str("reason", reason).
		Msg("manual override recorded for canary deployment")
	_, err := m.ExecuteDecision(id)
	return err
}
