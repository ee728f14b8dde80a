package story

import (
	"errors"
	"fmt"
	"sync"

	"story-engine/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a story's structure and its graph: required fields,
// closed enums, unique scene ids, an existing start scene, and that every
// choice target resolves. All problems are joined into one error.
func Validate(story *domain.Story) error {
	var errs []error
	if err := getValidator().Struct(story); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	seen := make(map[string]bool, len(story.Scenes))
	for _, scene := range story.Scenes {
		if seen[scene.ID] {
			errs = append(errs, fmt.Errorf("scene %q: duplicate id", scene.ID))
		}
		seen[scene.ID] = true
	}
	if story.StartSceneID != "" && !seen[story.StartSceneID] {
		errs = append(errs, fmt.Errorf("start scene %q: %w", story.StartSceneID, domain.ErrSceneNotFound))
	}
	for _, scene := range story.Scenes {
		for _, choice := range scene.Choices {
			if choice.NextSceneID == "" {
				errs = append(errs, fmt.Errorf("scene %q choice %q: missing nextSceneId", scene.ID, choice.ID))
				continue
			}
			if !seen[choice.NextSceneID] {
				errs = append(errs, fmt.Errorf("scene %q choice %q: target %q: %w",
					scene.ID, choice.ID, choice.NextSceneID, domain.ErrSceneNotFound))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("story %q is invalid: %w", story.ID, errors.Join(errs...))
	}
	return nil
}

// ValidateMiniGame checks a mini-game catalog entry.
func ValidateMiniGame(game *domain.MiniGame) error {
	if err := getValidator().Struct(game); err != nil {
		return fmt.Errorf("mini-game %q is invalid: %w", game.ID, err)
	}
	return nil
}
