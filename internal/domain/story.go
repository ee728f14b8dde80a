package domain

// Story is an immutable catalog entry: a directed graph of scenes with a
// designated entry point. Scene ids are unique within a story.
type Story struct {
	ID           string  `json:"id" validate:"required"`
	Title        string  `json:"title" validate:"required"`
	Description  string  `json:"description"`
	Thumbnail    string  `json:"thumbnail"`
	StartSceneID string  `json:"startSceneId" validate:"required"`
	Scenes       []Scene `json:"scenes" validate:"required,min=1,dive"`
}

// Scene returns the scene with the given id, or nil.
func (s *Story) Scene(sceneID string) *Scene {
	if s == nil {
		return nil
	}
	for i := range s.Scenes {
		if s.Scenes[i].ID == sceneID {
			return &s.Scenes[i]
		}
	}
	return nil
}

// Scene is a node in the story graph.
type Scene struct {
	ID                string             `json:"id" validate:"required"`
	Text              string             `json:"text"`
	Background        string             `json:"background,omitempty"`
	Characters        []Character        `json:"characters,omitempty" validate:"omitempty,dive"`
	Choices           []Choice           `json:"choices,omitempty" validate:"omitempty,dive"`
	MiniGame          *MiniGameTrigger   `json:"miniGame,omitempty"`
	AutoAdvance       *bool              `json:"autoAdvance,omitempty"`
	ClickableElements []ClickableElement `json:"clickableElements,omitempty" validate:"omitempty,dive"`
}

// Choice returns the choice with the given id, or nil.
func (s *Scene) Choice(choiceID string) *Choice {
	if s == nil {
		return nil
	}
	for i := range s.Choices {
		if s.Choices[i].ID == choiceID {
			return &s.Choices[i]
		}
	}
	return nil
}

// Element returns the clickable element with the given id, or nil.
func (s *Scene) Element(elementID string) *ClickableElement {
	if s == nil {
		return nil
	}
	for i := range s.ClickableElements {
		if s.ClickableElements[i].ID == elementID {
			return &s.ClickableElements[i]
		}
	}
	return nil
}

// IsDecision reports whether the scene waits for the player to pick a choice.
func (s *Scene) IsDecision() bool {
	return len(s.Choices) > 0
}

// IsAutoAdvancing reports whether the scene has no choices and does not opt
// out of auto-advance.
func (s *Scene) IsAutoAdvancing() bool {
	if len(s.Choices) > 0 {
		return false
	}
	return s.AutoAdvance == nil || *s.AutoAdvance
}

// CharacterPosition is where a character is drawn on screen.
type CharacterPosition string

const (
	PositionLeft   CharacterPosition = "left"
	PositionCenter CharacterPosition = "center"
	PositionRight  CharacterPosition = "right"
)

// Character is a portrait shown in a scene. Rendering only.
type Character struct {
	ID       string            `json:"id" validate:"required"`
	Name     string            `json:"name"`
	Avatar   string            `json:"avatar"`
	Position CharacterPosition `json:"position" validate:"omitempty,oneof=left center right"`
}

// Choice is an edge from one scene to another, optionally gated by
// conditions and optionally mutating state through effects.
type Choice struct {
	ID          string      `json:"id" validate:"required"`
	Text        string      `json:"text"`
	NextSceneID string      `json:"nextSceneId"`
	Conditions  []Condition `json:"conditions,omitempty" validate:"omitempty,dive"`
	Effects     []Effect    `json:"effects,omitempty" validate:"omitempty,dive"`
}

// IsConsequential reports whether taking the choice changes state.
func (c *Choice) IsConsequential() bool {
	return len(c.Effects) > 0
}

// ClickableElement is an interactive hotspot on a scene.
type ClickableElement struct {
	ID            string      `json:"id" validate:"required"`
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	Width         float64     `json:"width"`
	Height        float64     `json:"height"`
	Action        string      `json:"action" validate:"required"`
	Tooltip       string      `json:"tooltip,omitempty"`
	IsHidden      bool        `json:"isHidden,omitempty"`
	VisibilityKey string      `json:"visibilityKey,omitempty"`
	Conditions    []Condition `json:"conditions,omitempty" validate:"omitempty,dive"`
	Effects       []Effect    `json:"effects,omitempty" validate:"omitempty,dive"`
}
