package canary

import (
	"math"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/stats"
	"github.com/vvtv/autopilot/pkg/types"
)

// PowerAnalysis exposes pkg/stats.PowerAnalysis for the deployment's weakest
// KPI effect size, plus a recommended extension in minutes to reach 80%
// power at the current sample accrual rate.
func (m *Manager) PowerAnalysis(id string) (types.PowerAnalysis, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	m.mu.Unlock()
	if !ok {
		return types.PowerAnalysis{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	if d.LatestSummary == nil {
		return types.PowerAnalysis{}, apperr.New(apperr.KindInsufficientData, component,
			"no metrics collected yet for deployment: "+id)
	}

	smallest := 1.0
	for _, t := range d.LatestSummary.Tests {
		v := t.EffectSize
		if v < 0 {
			v = -v
		}
		if v > 0 && v < smallest {
			smallest = v
		}
	}

	result := stats.PowerAnalysis(d.LatestSummary.CanarySamples, d.LatestSummary.ControlSamples, smallest, 1-m.cfg.ConfidenceThreshold)

	extension := 0
	elapsedMinutes := d.LatestSummary.WindowEnd.Sub(d.LatestSummary.WindowStart).Minutes()
	if elapsedMinutes > 0 && result.RequiredSampleSize80 > d.LatestSummary.CanarySamples {
		samplesPerMinute := float64(d.LatestSummary.CanarySamples) / elapsedMinutes
		if samplesPerMinute > 0 {
			needed := float64(result.RequiredSampleSize80-d.LatestSummary.CanarySamples) / samplesPerMinute
			extension = int(math.Ceil(needed))
		}
	}

	return types.PowerAnalysis{
		CurrentPower:                         result.CurrentPower,
		RequiredSampleSize80:                 result.RequiredSampleSize80,
		RequiredSampleSize90:                 result.RequiredSampleSize90,
		MinimumDetectableEffect:              result.MinimumDetectableEffect,
		RecommendedDurationExtensionMinutes: extension,
	}, nil
}
