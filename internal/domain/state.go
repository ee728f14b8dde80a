package domain

import (
	"slices"
	"time"
)

// Variables is the mutable game-variable bag.
type Variables map[string]any

// Clone returns a deep copy of the bag.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

// GameState is the single authoritative mutable record of a play session.
// It is owned by the engine; everything else receives copies.
type GameState struct {
	StoryID            string    `json:"storyId"`
	CurrentSceneID     string    `json:"currentSceneId"`
	PlayerChoices      []string  `json:"playerChoices"`
	GameVariables      Variables `json:"gameVariables"`
	CompletedMiniGames []string  `json:"completedMiniGames"`
	PlayTime           int       `json:"playTime"` // seconds
	LastSaved          time.Time `json:"lastSaved"`
}

// NewGameState returns a fresh state positioned on the given scene.
func NewGameState(storyID, sceneID string, now time.Time) *GameState {
	return &GameState{
		StoryID:            storyID,
		CurrentSceneID:     sceneID,
		PlayerChoices:      []string{},
		GameVariables:      Variables{},
		CompletedMiniGames: []string{},
		LastSaved:          now,
	}
}

// Clone returns a deep copy of the state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s
	out.PlayerChoices = append([]string{}, s.PlayerChoices...)
	out.CompletedMiniGames = append([]string{}, s.CompletedMiniGames...)
	out.GameVariables = s.GameVariables.Clone()
	return &out
}

// HasCompleted reports whether the mini-game was completed successfully.
func (s *GameState) HasCompleted(gameID string) bool {
	return slices.Contains(s.CompletedMiniGames, gameID)
}

// MarkCompleted appends gameID to the completed list unless already present.
func (s *GameState) MarkCompleted(gameID string) {
	if !s.HasCompleted(gameID) {
		s.CompletedMiniGames = append(s.CompletedMiniGames, gameID)
	}
}

// NormalizeValue converts every numeric kind to float64, recursively, so
// that values survive a JSON round-trip unchanged.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = NormalizeValue(val)
		}
		return out
	case Variables:
		return NormalizeValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// NormalizeVariables returns a copy of vars with every value normalised.
func NormalizeVariables(vars Variables) Variables {
	out := make(Variables, len(vars))
	for k, v := range vars {
		out[k] = NormalizeValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Variables:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}
