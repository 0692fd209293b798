package optimizer

import (
	"fmt"
	"math"

	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/types"
)

// Validation is the three-check result of validateChange: a comprehensive
// bounds check (with an auto-adjusted fallback value when the proposal
// overshoots the sliding range), a business-logic check, and a safety check.
type Validation struct {
	IsValid       bool
	Errors        []string
	Warnings      []string
	BoundsOK      bool
	BusinessOK    bool
	SafetyOK      bool
	AdjustedValue *float64
	Confidence    float64
}

// validateChange runs the optimizer's three validation passes. The bounds
// pass delegates to the bounds manager's comprehensive check, which also
// rejects a plan-selection-bias change that exceeds its per-day cap.
func (o *Optimizer) validateChange(parameter string, current, proposed float64, boundsMgr *bounds.Manager) Validation {
	v := Validation{Confidence: 1.0}

	res, err := boundsMgr.ValidateComprehensive(parameter, proposed)
	if err != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("bounds violation: %v", err))
	} else {
		v.Confidence = res.Confidence
		v.Warnings = append(v.Warnings, res.Warnings...)
		switch {
		case res.Passed:
			v.BoundsOK = true
		case res.AdjustedValue != nil:
			v.Errors = append(v.Errors, fmt.Sprintf("bounds violation: %s", res.Detail))
			v.AdjustedValue = res.AdjustedValue
			v.BoundsOK = true
		default:
			v.Errors = append(v.Errors, fmt.Sprintf("bounds violation: %s", res.Detail))
		}
	}

	v.BusinessOK = validateBusinessLogic(parameter, proposed, &v.Errors)
	v.SafetyOK = validateSafety(parameter, current, proposed, &v.Errors)

	v.IsValid = v.BoundsOK && v.BusinessOK && v.SafetyOK
	return v
}

// validateBusinessLogic enforces the domain rules specific to each known
// parameter.
func validateBusinessLogic(parameter string, value float64, errors *[]string) bool {
	switch parameter {
	case types.ParamSelectionTemperature:
		if value <= 0 {
			*errors = append(*errors, "temperature must be positive")
			return false
		}
		if value > 3.0 {
			*errors = append(*errors, "temperature too high (>3.0)")
			return false
		}
		return true

	case types.ParamSelectionTopK:
		if value < 1.0 {
			*errors = append(*errors, "top-k must be at least 1")
			return false
		}
		if value > 100.0 {
			*errors = append(*errors, "top-k too high (>100)")
			return false
		}
		if value != math.Trunc(value) {
			*errors = append(*errors, "top-k must be an integer")
			return false
		}
		return true

	case types.ParamCuratorConfidenceThreshold:
		if value < 0 || value > 1 {
			*errors = append(*errors, "confidence threshold must be between 0 and 1")
			return false
		}
		return true

	case types.ParamPlanSelectionBias:
		if math.Abs(value) > 0.5 {
			*errors = append(*errors, "selection bias magnitude too high (>0.5)")
			return false
		}
		return true

	default:
		*errors = append(*errors, fmt.Sprintf("unknown parameter: %s", parameter))
		return false
	}
}

// validateSafety enforces a maximum per-cycle change for each known
// parameter. Most parameters are capped by relative change; plan-selection
// bias centers on zero, where a relative change is meaningless, so it is
// capped by the same absolute per-day delta the bounds manager enforces.
func validateSafety(parameter string, current, proposed float64, errors *[]string) bool {
	if parameter == types.ParamPlanSelectionBias {
		change := math.Abs(proposed - current)
		if change > types.MaxDailyBiasChange {
			*errors = append(*errors, fmt.Sprintf("change too large: %.4f exceeds %.4f daily bias cap", change, types.MaxDailyBiasChange))
			return false
		}
		return true
	}

	changePct := math.Abs(proposed)
	if current != 0 {
		changePct = math.Abs((proposed - current) / current)
	}

	maxChangePct := 0.20
	switch parameter {
	case types.ParamSelectionTemperature:
		maxChangePct = 0.15
	case types.ParamSelectionTopK:
		maxChangePct = 0.25
	case types.ParamCuratorConfidenceThreshold:
		maxChangePct = 0.10
	}

	if changePct > maxChangePct {
		*errors = append(*errors, fmt.Sprintf("change too large: %.1f%% exceeds %.1f%% limit", changePct*100, maxChangePct*100))
		return false
	}
	return true
}
