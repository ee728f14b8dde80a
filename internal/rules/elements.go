package rules

import (
	"fmt"
	"math"

	"story-engine/internal/domain"

	"go.uber.org/zap"
)

// Element actions with built-in variable bookkeeping.
const (
	ActionExamine = "examine"
	ActionCollect = "collect"
	ActionToggle  = "toggle"
)

// ElementVisible reports whether all of the element's conditions hold.
func ElementVisible(el domain.ClickableElement, facts Facts) bool {
	return EvaluateConditions(el.Conditions, facts)
}

// HiddenElementRevealed reports whether a hidden element has been revealed.
// Elements that are not hidden are always revealed.
func HiddenElementRevealed(el domain.ClickableElement, vars domain.Variables) bool {
	if !el.IsHidden {
		return true
	}
	key := el.VisibilityKey
	if key == "" {
		key = fmt.Sprintf("reveal_%s", el.ID)
	}
	return truthy(vars[key])
}

// ActivateElement returns a new variable bag reflecting the element's action
// and effects. vars is not modified.
func ActivateElement(el domain.ClickableElement, vars domain.Variables, logger *zap.Logger) domain.Variables {
	out := vars.Clone()
	switch el.Action {
	case ActionExamine:
		out["examined_"+el.ID] = true
	case ActionCollect:
		out["collected_"+el.ID] = true
	case ActionToggle:
		key := "toggled_" + el.ID
		out[key] = !truthy(out[key])
	default:
		out[el.Action] = true
	}
	return ApplyEffects(el.Effects, out, logger)
}

func truthy(v any) bool {
	switch t := domain.NormalizeValue(v).(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}
