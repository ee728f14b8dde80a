package engine

import (
	"context"
	"fmt"

	"story-engine/internal/domain"
	"story-engine/internal/messaging"
	"story-engine/internal/rules"
)

func (e *Engine) elementAvailableLocked(el domain.ClickableElement) bool {
	return rules.ElementVisible(el, rules.FactsOf(e.state)) &&
		rules.HiddenElementRevealed(el, e.state.GameVariables)
}

// VisibleElements returns the current scene's elements the player can see.
func (e *Engine) VisibleElements() []domain.ClickableElement {
	e.mu.Lock()
	defer e.mu.Unlock()

	scene := e.nav.CurrentScene()
	if scene == nil || e.state == nil {
		return nil
	}
	var out []domain.ClickableElement
	for _, el := range scene.ClickableElements {
		if e.elementAvailableLocked(el) {
			out = append(out, el)
		}
	}
	return out
}

// ActivateElement applies the element's action and effects to the game variables.
func (e *Engine) ActivateElement(ctx context.Context, elementID string) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	if e.state == nil {
		return domain.ErrNoActiveSession
	}
	el := e.nav.CurrentScene().Element(elementID)
	if el == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownElement, elementID)
	}
	if !e.elementAvailableLocked(*el) {
		return fmt.Errorf("%w: %s", domain.ErrElementNotAvailable, elementID)
	}
	e.state.GameVariables = rules.ActivateElement(*el, e.state.GameVariables, e.logger)
	e.emit(messaging.EventElementActivated, map[string]any{"elementId": elementID, "action": el.Action})
	return nil
}
