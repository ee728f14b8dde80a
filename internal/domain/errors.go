package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the engine surfaces wraps exactly one of these.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Specific errors.
var (
	ErrStoryNotFound    = fmt.Errorf("story %w", ErrNotFound)
	ErrSceneNotFound    = fmt.Errorf("scene %w", ErrNotFound)
	ErrUnknownChoice    = fmt.Errorf("choice %w in current scene", ErrNotFound)
	ErrUnknownElement   = fmt.Errorf("element %w in current scene", ErrNotFound)
	ErrSaveNotFound     = fmt.Errorf("save data %w", ErrNotFound)
	ErrMiniGameNotFound = fmt.Errorf("mini-game %w", ErrNotFound)

	ErrInvalidSlotID = fmt.Errorf("%w: save slot id out of range", ErrInvalidArgument)

	ErrNoActiveSession     = fmt.Errorf("%w: no active game session", ErrPreconditionFailed)
	ErrNoActiveMiniGame    = fmt.Errorf("%w: no active mini-game", ErrPreconditionFailed)
	ErrChoiceNotAvailable  = fmt.Errorf("%w: choice not available", ErrPreconditionFailed)
	ErrElementNotAvailable = fmt.Errorf("%w: element not available", ErrPreconditionFailed)
	ErrRetryNotAllowed     = fmt.Errorf("%w: retry not allowed", ErrPreconditionFailed)
)
