package domain

// ConditionType selects what a condition reads.
type ConditionType string

const (
	ConditionVariable ConditionType = "variable" // game variable bag
	ConditionChoice   ConditionType = "choice"   // membership in player choice history
	ConditionMiniGame ConditionType = "minigame" // membership in completed mini-games
)

// Operator is a comparison operator of a condition.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Condition is a boolean predicate over game state.
type Condition struct {
	Type     ConditionType `json:"type" validate:"required,oneof=variable choice minigame"`
	Key      string        `json:"key" validate:"required"`
	Operator Operator      `json:"operator" validate:"required,oneof=== != > < >= <="`
	Value    any           `json:"value"`
}

// EffectType selects what an effect mutates.
type EffectType string

const (
	EffectVariable EffectType = "variable"
	// EffectScene is reserved; accepted and ignored.
	EffectScene EffectType = "scene"
)

// Effect is a state mutation applied when a choice or element is taken.
type Effect struct {
	Type  EffectType `json:"type" validate:"required,oneof=variable scene"`
	Key   string     `json:"key" validate:"required"`
	Value any        `json:"value"`
}
