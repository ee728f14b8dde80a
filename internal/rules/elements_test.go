package rules_test

import (
	"testing"

	"story-engine/internal/domain"
	"story-engine/internal/rules"

	"github.com/stretchr/testify/assert"
)

func TestActivateElement(t *testing.T) {
	vars := domain.Variables{}

	tests := []struct {
		name string
		el   domain.ClickableElement
		want domain.Variables
	}{
		{"examine", domain.ClickableElement{ID: "desk", Action: rules.ActionExamine}, domain.Variables{"examined_desk": true}},
		{"collect", domain.ClickableElement{ID: "key", Action: rules.ActionCollect}, domain.Variables{"collected_key": true}},
		{"toggle", domain.ClickableElement{ID: "lamp", Action: rules.ActionToggle}, domain.Variables{"toggled_lamp": true}},
		{"custom action", domain.ClickableElement{ID: "bell", Action: "ring_bell"}, domain.Variables{"ring_bell": true}},
		{"effects applied after action", domain.ClickableElement{
			ID:      "safe",
			Action:  rules.ActionExamine,
			Effects: []domain.Effect{{Type: domain.EffectVariable, Key: "code", Value: "1234"}},
		}, domain.Variables{"examined_safe": true, "code": "1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ActivateElement(tt.el, vars, nil))
		})
	}
	assert.Empty(t, vars)
}

func TestToggleFlipsBack(t *testing.T) {
	el := domain.ClickableElement{ID: "lamp", Action: rules.ActionToggle}
	once := rules.ActivateElement(el, domain.Variables{}, nil)
	twice := rules.ActivateElement(el, once, nil)
	assert.Equal(t, false, twice["toggled_lamp"])
}

func TestElementVisibility(t *testing.T) {
	plain := domain.ClickableElement{ID: "door"}
	gated := domain.ClickableElement{ID: "door", Conditions: []domain.Condition{
		{Type: domain.ConditionVariable, Key: "lightOn", Operator: domain.OpEqual, Value: true},
	}}

	assert.True(t, rules.ElementVisible(plain, rules.Facts{}))
	assert.False(t, rules.ElementVisible(gated, rules.Facts{}))
	assert.True(t, rules.ElementVisible(gated, rules.VariablesOnly(domain.Variables{"lightOn": true})))
}

func TestHiddenElementRevealed(t *testing.T) {
	visible := domain.ClickableElement{ID: "a"}
	hidden := domain.ClickableElement{ID: "panel", IsHidden: true}
	keyed := domain.ClickableElement{ID: "panel", IsHidden: true, VisibilityKey: "foundLever"}

	assert.True(t, rules.HiddenElementRevealed(visible, nil))
	assert.False(t, rules.HiddenElementRevealed(hidden, domain.Variables{}))
	assert.True(t, rules.HiddenElementRevealed(hidden, domain.Variables{"reveal_panel": true}))
	assert.False(t, rules.HiddenElementRevealed(keyed, domain.Variables{"reveal_panel": true}))
	assert.True(t, rules.HiddenElementRevealed(keyed, domain.Variables{"foundLever": 1}))
	assert.False(t, rules.HiddenElementRevealed(keyed, domain.Variables{"foundLever": ""}))
}
