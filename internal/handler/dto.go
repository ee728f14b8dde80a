package handler

import (
	"story-engine/internal/domain"
	"story-engine/internal/engine"
)

// StorySummary is one entry of GET /stories.
type StorySummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	StartSceneID string `json:"startSceneId"`
}

// SceneView is what a renderer needs to draw the current scene.
type SceneView struct {
	StoryID     string                    `json:"storyId"`
	Scene       *domain.Scene             `json:"scene"`
	Choices     []domain.Choice           `json:"choices"`
	Elements    []domain.ClickableElement `json:"elements"`
	AutoAdvance bool                      `json:"autoAdvance"`
	MiniGame    *engine.MiniGameStatus    `json:"miniGame,omitempty"`
}

// SavesView lists the save slots.
type SavesView struct {
	Slots     []domain.SaveSlot `json:"slots"`
	MaxSlots  int               `json:"maxSlots"`
	EmptySlot *int              `json:"emptySlot"`
}

type saveRequest struct {
	Name      string `json:"name" validate:"max=100"`
	Thumbnail string `json:"thumbnail" validate:"omitempty,max=2048"`
}

type variablesRequest struct {
	Variables map[string]any `json:"variables" validate:"required,min=1"`
}

type miniGameStartRequest struct {
	Config domain.MiniGameConfig `json:"config"`
}

type miniGameResultRequest struct {
	Success *bool    `json:"success" validate:"required"`
	Score   *float64 `json:"score"`
	Data    any      `json:"data"`
}

type miniGameScoreRequest struct {
	Delta *float64 `json:"delta" validate:"required"`
}

type autoAdvanceResponse struct {
	AutoAdvance bool `json:"autoAdvance"`
}
