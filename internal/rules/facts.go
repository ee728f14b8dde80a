package rules

import (
	"slices"

	"story-engine/internal/domain"
)

// Facts is the read-only view conditions are evaluated against.
type Facts struct {
	Variables          domain.Variables
	PlayerChoices      []string
	CompletedMiniGames []string
}

// FactsOf builds a view over a game state. The view aliases the state; it
// must not outlive the call it is built for.
func FactsOf(state *domain.GameState) Facts {
	if state == nil {
		return Facts{}
	}
	return Facts{
		Variables:          state.GameVariables,
		PlayerChoices:      state.PlayerChoices,
		CompletedMiniGames: state.CompletedMiniGames,
	}
}

// VariablesOnly builds a view with an empty history.
func VariablesOnly(vars domain.Variables) Facts {
	return Facts{Variables: vars}
}

// resolve returns the value a condition compares against; nil when absent.
func (f Facts) resolve(cond domain.Condition) any {
	switch cond.Type {
	case domain.ConditionVariable:
		v, ok := f.Variables[cond.Key]
		if !ok {
			return nil
		}
		return v
	case domain.ConditionChoice:
		return slices.Contains(f.PlayerChoices, cond.Key)
	case domain.ConditionMiniGame:
		return slices.Contains(f.CompletedMiniGames, cond.Key)
	default:
		return nil
	}
}
