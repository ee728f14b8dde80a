// Package story holds the story catalog and the scene-graph navigator.
package story

import (
	"story-engine/internal/domain"
	"story-engine/internal/rules"

	"go.uber.org/zap"
)

// Navigator holds the loadable stories and the current story/scene pointers.
// It keeps no history; that lives in GameState.PlayerChoices.
// A Navigator is not safe for concurrent use; the engine serializes access.
type Navigator struct {
	stories      []domain.Story
	currentStory *domain.Story
	currentScene *domain.Scene
	logger       *zap.Logger
}

// NewNavigator creates a navigator over an initial catalog.
func NewNavigator(stories []domain.Story, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Navigator{logger: logger.Named("Navigator")}
	n.loadCatalog(stories)
	return n
}

// loadCatalog replaces the full set of known stories. The current pointers
// are cleared since they may point into the old catalog.
func (n *Navigator) loadCatalog(stories []domain.Story) {
	n.stories = stories
	n.currentStory = nil
	n.currentScene = nil
	n.logger.Info("Story catalog loaded", zap.Int("stories", len(stories)))
}

// Stories returns the catalog.
func (n *Navigator) Stories() []domain.Story {
	return n.stories
}

// Story returns the catalog entry with the given id, or nil.
func (n *Navigator) Story(storyID string) *domain.Story {
	for i := range n.stories {
		if n.stories[i].ID == storyID {
			return &n.stories[i]
		}
	}
	return nil
}

// SelectStory makes storyID current and jumps to its start scene. It
// returns false without side effects when the story or its start scene is unknown.
func (n *Navigator) SelectStory(storyID string) bool {
	story := n.Story(storyID)
	if story == nil {
		n.logger.Warn("Story not found", zap.String("storyID", storyID))
		return false
	}
	start := story.Scene(story.StartSceneID)
	if start == nil {
		n.logger.Warn("Start scene not found",
			zap.String("storyID", storyID),
			zap.String("sceneID", story.StartSceneID),
		)
		return false
	}
	n.currentStory = story
	n.currentScene = start
	return true
}

// Scene returns a scene of the current story, or nil.
func (n *Navigator) Scene(sceneID string) *domain.Scene {
	return n.currentStory.Scene(sceneID)
}

// JumpToScene makes sceneID current within the current story. It returns
// false and leaves the current scene unchanged when the id is unknown.
func (n *Navigator) JumpToScene(sceneID string) bool {
	scene := n.Scene(sceneID)
	if scene == nil {
		n.logger.Debug("Jump target not found", zap.String("sceneID", sceneID))
		return false
	}
	n.currentScene = scene
	return true
}

// ResolveChoice gates, mutates and navigates in one step. It returns the new
// current scene and the variable bag with the choice's effects applied, or
// ok=false when the choice has no target, its conditions fail, or the target
// is unknown. On failure nothing changes. facts.Variables is never modified;
// the caller decides when to commit the returned bag.
func (n *Navigator) ResolveChoice(choice domain.Choice, facts rules.Facts) (*domain.Scene, domain.Variables, bool) {
	if choice.NextSceneID == "" {
		return nil, nil, false
	}
	if !rules.EvaluateConditions(choice.Conditions, facts) {
		n.logger.Debug("Choice conditions not met", zap.String("choiceID", choice.ID))
		return nil, nil, false
	}
	next := n.Scene(choice.NextSceneID)
	if next == nil {
		n.logger.Warn("Choice target scene not found",
			zap.String("choiceID", choice.ID),
			zap.String("nextSceneID", choice.NextSceneID),
		)
		return nil, nil, false
	}
	vars := rules.ApplyEffects(choice.Effects, facts.Variables, n.logger)
	n.currentScene = next
	return next, vars, true
}

// Restore points the navigator at storyID/sceneID. Both must exist; on
// failure the pointers are unchanged.
func (n *Navigator) Restore(storyID, sceneID string) error {
	story := n.Story(storyID)
	if story == nil {
		return domain.ErrStoryNotFound
	}
	scene := story.Scene(sceneID)
	if scene == nil {
		return domain.ErrSceneNotFound
	}
	n.currentStory = story
	n.currentScene = scene
	return nil
}

// CurrentStory returns the current story, or nil.
func (n *Navigator) CurrentStory() *domain.Story {
	return n.currentStory
}

// CurrentScene returns the current scene, or nil.
func (n *Navigator) CurrentScene() *domain.Scene {
	return n.currentScene
}
