package engine

import (
	"context"
	"fmt"

	"story-engine/internal/domain"
	"story-engine/internal/messaging"
	"story-engine/internal/minigame"

	"go.uber.org/zap"
)

// The dispatcher callbacks below always run with e.mu held: dispatcher
// methods are only called under the lock, and session ticks go through exec.

func (e *Engine) onGameComplete(game domain.MiniGame, result domain.GameResult) {
	if next := game.NextScene(result.Success); e.nav.Scene(next) == nil {
		e.logger.Error("Mini-game result dropped, follow-up scene not found",
			zap.String("gameID", game.ID),
			zap.String("sceneID", next),
		)
		return
	}
	e.recordResultLocked(game, result)
}

func (e *Engine) onSceneTransition(sceneID string) {
	if !e.navigateLocked(sceneID) {
		e.logger.Error("Mini-game follow-up scene not found", zap.String("sceneID", sceneID))
	}
}

func (e *Engine) onGameExit(game domain.MiniGame) {
	e.emit(messaging.EventMiniGameExited, map[string]any{"gameId": game.ID})
}

func (e *Engine) recordResultLocked(game domain.MiniGame, result domain.GameResult) {
	observeMiniGame(game.ID, result.Success)
	if e.state == nil {
		return
	}
	prefix := "minigame_" + game.ID
	e.mergeLocked(map[string]any{
		prefix + "_result": result.Success,
		prefix + "_score":  result.ScoreOrZero(),
		prefix + "_data":   result.Data,
	})
	if result.Success {
		e.state.MarkCompleted(game.ID)
	}
	e.emit(messaging.EventMiniGameCompleted, map[string]any{
		"gameId":  game.ID,
		"success": result.Success,
		"score":   result.ScoreOrZero(),
	})
}

// ReportMiniGameResult completes the running mini-game with result: it
// records the outcome in the game variables, marks the game completed on
// success and moves to the follow-up scene.
func (e *Engine) ReportMiniGameResult(ctx context.Context, result domain.GameResult) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	game := e.dispatcher.Current()
	if game == nil {
		return domain.ErrNoActiveMiniGame
	}
	if e.state == nil {
		return domain.ErrNoActiveSession
	}
	next := game.NextScene(result.Success)
	if e.nav.Scene(next) == nil {
		return fmt.Errorf("mini-game %s follow-up %w: %s", game.ID, domain.ErrSceneNotFound, next)
	}
	e.dispatcher.End()
	e.recordResultLocked(*game, result)
	e.navigateLocked(next)
	return nil
}

// StartMiniGame launches gameID directly, replacing any running game.
func (e *Engine) StartMiniGame(ctx context.Context, gameID string, override domain.MiniGameConfig) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	if e.state == nil {
		return domain.ErrNoActiveSession
	}
	if _, ok := e.dispatcher.Game(gameID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrMiniGameNotFound, gameID)
	}
	if !e.dispatcher.Start(gameID, override) {
		return fmt.Errorf("mini-game %s could not be started: %w", gameID, domain.ErrPreconditionFailed)
	}
	e.emit(messaging.EventMiniGameStarted, map[string]any{"gameId": gameID})
	return nil
}

// PauseMiniGame pauses the running mini-game.
func (e *Engine) PauseMiniGame() error {
	return e.controlMiniGame(e.dispatcher.Pause)
}

// ResumeMiniGame resumes a paused mini-game.
func (e *Engine) ResumeMiniGame() error {
	return e.controlMiniGame(e.dispatcher.Resume)
}

// ResetMiniGame restarts the running mini-game's countdown and score.
func (e *Engine) ResetMiniGame() error {
	return e.controlMiniGame(e.dispatcher.Reset)
}

// AddMiniGameScore adds delta to the running mini-game's score.
func (e *Engine) AddMiniGameScore(delta float64) error {
	return e.controlMiniGame(func() bool { return e.dispatcher.AddScore(delta) })
}

func (e *Engine) controlMiniGame(op func() bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !op() {
		return domain.ErrNoActiveMiniGame
	}
	return nil
}

// RetryMiniGame restarts the running mini-game when it allows retries.
func (e *Engine) RetryMiniGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	game := e.dispatcher.Current()
	if game == nil {
		return domain.ErrNoActiveMiniGame
	}
	if !e.dispatcher.CanRetry() {
		return fmt.Errorf("%w: %s", domain.ErrRetryNotAllowed, game.ID)
	}
	if !e.dispatcher.Retry() {
		return fmt.Errorf("mini-game %s could not be restarted: %w", game.ID, domain.ErrPreconditionFailed)
	}
	e.emit(messaging.EventMiniGameStarted, map[string]any{"gameId": game.ID, "retry": true})
	return nil
}

// ExitMiniGame abandons the running mini-game without navigating.
func (e *Engine) ExitMiniGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock(ctx)
	if !e.dispatcher.Exit() {
		return domain.ErrNoActiveMiniGame
	}
	return nil
}

// MiniGameStatus describes the running mini-game.
type MiniGameStatus struct {
	Game     domain.MiniGame `json:"game"`
	State    minigame.State  `json:"state"`
	CanRetry bool            `json:"canRetry"`
}

// CurrentMiniGame returns the running mini-game, if any.
func (e *Engine) CurrentMiniGame() (MiniGameStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	game := e.dispatcher.Current()
	if game == nil {
		return MiniGameStatus{}, false
	}
	st, _ := e.dispatcher.SessionState()
	return MiniGameStatus{Game: *game, State: st, CanRetry: e.dispatcher.CanRetry()}, true
}

// MiniGames returns the registered catalog.
func (e *Engine) MiniGames() []domain.MiniGame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.Available()
}
