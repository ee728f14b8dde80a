package domain

import "maps"

// MiniGameType is the closed set of mini-game variant tags.
type MiniGameType string

const (
	MiniGamePuzzle MiniGameType = "puzzle"
	MiniGameReflex MiniGameType = "reflex"
	MiniGameMemory MiniGameType = "memory"
	MiniGameQuiz   MiniGameType = "quiz"
)

// Difficulty of a mini-game.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// MiniGameConfig is a free-form configuration bag. The well-known keys are
// "difficulty" and "timeLimit" (seconds).
type MiniGameConfig map[string]any

const (
	ConfigDifficulty = "difficulty"
	ConfigTimeLimit  = "timeLimit"
)

// Merge returns a new config with override applied on top of c; override wins per key.
func (c MiniGameConfig) Merge(override MiniGameConfig) MiniGameConfig {
	out := make(MiniGameConfig, len(c)+len(override))
	maps.Copy(out, c)
	maps.Copy(out, override)
	return out
}

// Difficulty returns the configured difficulty, if any.
func (c MiniGameConfig) Difficulty() Difficulty {
	d, _ := c[ConfigDifficulty].(string)
	return Difficulty(d)
}

// TimeLimit returns the configured time limit in seconds, or 0 when unset.
func (c MiniGameConfig) TimeLimit() int {
	switch v := NormalizeValue(c[ConfigTimeLimit]).(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return 0
}

// MiniGame is a catalog entry; registered once per process and never mutated.
type MiniGame struct {
	ID           string         `json:"id" validate:"required"`
	Type         MiniGameType   `json:"type" validate:"required,oneof=puzzle reflex memory quiz"`
	Config       MiniGameConfig `json:"config"`
	SuccessScene string         `json:"successScene" validate:"required"`
	FailureScene string         `json:"failureScene" validate:"required"`
	RetryAllowed bool           `json:"retryAllowed"`
}

// NextScene returns the follow-up scene for a result.
func (g *MiniGame) NextScene(success bool) string {
	if success {
		return g.SuccessScene
	}
	return g.FailureScene
}

// MiniGameTrigger is a scene-level declaration that a mini-game should start
// when the scene becomes current, subject to an optional condition.
type MiniGameTrigger struct {
	GameID    string     `json:"gameId" validate:"required"`
	Condition *Condition `json:"condition,omitempty"`
}

// GameResult is what a mini-game session reports on completion.
type GameResult struct {
	Success bool     `json:"success"`
	Score   *float64 `json:"score,omitempty"`
	Data    any      `json:"data,omitempty"`
}

// ScoreOrZero returns the score, treating a missing score as 0.
func (r GameResult) ScoreOrZero() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}
