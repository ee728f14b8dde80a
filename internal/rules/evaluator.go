// Package rules holds the pure condition and effect functions the story
// graph is driven by.
package rules

import (
	"story-engine/internal/domain"

	"go.uber.org/zap"
)

// EvaluateConditions returns true iff every condition holds. An empty list
// always holds. It has no side effects on facts.
func EvaluateConditions(conditions []domain.Condition, facts Facts) bool {
	for _, cond := range conditions {
		if !EvaluateCondition(cond, facts) {
			return false
		}
	}
	return true
}

// EvaluateCondition evaluates a single condition.
func EvaluateCondition(cond domain.Condition, facts Facts) bool {
	return Compare(cond.Operator, facts.resolve(cond), cond.Value)
}

// ApplyEffects returns a new variable bag with every variable effect applied
// in order. The input bag is never modified. Scene effects are reserved and
// ignored; unknown effect types are ignored with a warning.
func ApplyEffects(effects []domain.Effect, vars domain.Variables, logger *zap.Logger) domain.Variables {
	out := vars.Clone()
	for _, effect := range effects {
		switch effect.Type {
		case domain.EffectVariable:
			out[effect.Key] = domain.NormalizeValue(effect.Value)
		case domain.EffectScene:
			if logger != nil {
				logger.Debug("Scene effect ignored", zap.String("key", effect.Key))
			}
		default:
			if logger != nil {
				logger.Warn("Unknown effect type ignored",
					zap.String("type", string(effect.Type)),
					zap.String("key", effect.Key),
				)
			}
		}
	}
	return out
}
