// Package engine is the orchestrator that owns the game state. It combines
// the story navigator, the save store and the mini-game dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"story-engine/internal/domain"
	"story-engine/internal/messaging"
	"story-engine/internal/minigame"
	"story-engine/internal/rules"
	"story-engine/internal/save"
	"story-engine/internal/story"
	"story-engine/pkg/scheduler"

	"go.uber.org/zap"
)

// DefaultPlayTimeTick is the play-time accumulation period; each tick adds
// one second to GameState.PlayTime.
const DefaultPlayTimeTick = time.Second

// Options configures an Engine.
type Options struct {
	Stories   []domain.Story
	MiniGames []domain.MiniGame
	Store     *save.Store
	// Scheduler drives play time and mini-game countdowns. When nil the
	// engine runs its own real-time ticker and closes it on Close.
	Scheduler    scheduler.Scheduler
	Registry     *minigame.Registry
	Publisher    messaging.Publisher
	PlayTimeTick time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// Engine is the single owner of the mutable GameState. All methods are
// safe for concurrent use; they are serialised on one mutex together with
// timer callbacks, so a tick never observes a half-applied operation.
type Engine struct {
	mu sync.Mutex

	nav        *story.Navigator
	dispatcher *minigame.Dispatcher
	store      *save.Store
	sched      scheduler.Scheduler
	ownSched   *scheduler.Ticker
	publisher  messaging.Publisher
	now        func() time.Time
	logger     *zap.Logger

	state       *domain.GameState
	autoAdvance bool
	tick        time.Duration
	playtime    scheduler.Handle
	playGen     uint64
	pending     []messaging.Event
}

// New builds an engine. Store is required.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: save store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.NoopPublisher{}
	}
	if opts.PlayTimeTick <= 0 {
		opts.PlayTimeTick = DefaultPlayTimeTick
	}

	e := &Engine{
		store:     opts.Store,
		publisher: opts.Publisher,
		now:       opts.Now,
		tick:      opts.PlayTimeTick,
		logger:    opts.Logger.Named("GameEngine"),
	}
	e.sched = opts.Scheduler
	if e.sched == nil {
		e.ownSched = scheduler.NewTicker()
		e.sched = e.ownSched
	}
	e.nav = story.NewNavigator(opts.Stories, opts.Logger)
	e.dispatcher = minigame.NewDispatcher(minigame.Options{
		Registry:  opts.Registry,
		Scheduler: e.sched,
		Executor:  e.exec,
		Callbacks: minigame.Callbacks{
			OnGameComplete:    e.onGameComplete,
			OnSceneTransition: e.onSceneTransition,
			OnGameExit:        e.onGameExit,
		},
		Logger: opts.Logger,
	})
	for _, g := range opts.MiniGames {
		e.dispatcher.Register(g)
	}
	return e, nil
}

// exec runs timer-driven work under the engine lock.
func (e *Engine) exec(fn func()) {
	e.mu.Lock()
	fn()
	events := e.takeEvents()
	e.mu.Unlock()
	e.publish(context.Background(), events)
}

func (e *Engine) takeEvents() []messaging.Event {
	events := e.pending
	e.pending = nil
	return events
}

// unlock releases the engine lock and then publishes what the operation
// emitted. Publishing never fails an operation.
func (e *Engine) unlock(ctx context.Context) {
	events := e.takeEvents()
	e.mu.Unlock()
	e.publish(ctx, events)
}

func (e *Engine) publish(ctx context.Context, events []messaging.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ev := range events {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Warn("Failed to publish engine event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}

func (e *Engine) emit(t messaging.EventType, payload map[string]any) {
	var storyID, sceneID string
	if e.state != nil {
		storyID, sceneID = e.state.StoryID, e.state.CurrentSceneID
	}
	e.pending = append(e.pending, messaging.NewEvent(t, storyID, sceneID, payload, e.now()))
}

// StartStory begins a fresh session of storyID at its start scene.
func (e *Engine) StartStory(ctx context.Context, storyID string) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	if !e.nav.SelectStory(storyID) {
		return fmt.Errorf("%w: %s", domain.ErrStoryNotFound, storyID)
	}
	scene := e.nav.CurrentScene()
	e.dispatcher.End()
	e.state = domain.NewGameState(storyID, scene.ID, e.now())
	e.startPlayTimeLocked()

	e.logger.Info("Story started", zap.String("storyID", storyID), zap.String("sceneID", scene.ID))
	e.emit(messaging.EventStoryStarted, nil)
	e.checkTriggerLocked(scene)
	return nil
}

// SubmitChoice resolves choiceID from the current scene against the live state.
func (e *Engine) SubmitChoice(ctx context.Context, choiceID string) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	err := e.submitChoiceLocked(choiceID)
	choicesSubmitted.WithLabelValues(outcome(err)).Inc()
	return err
}

func (e *Engine) submitChoiceLocked(choiceID string) error {
	if e.state == nil {
		return domain.ErrNoActiveSession
	}
	scene := e.nav.CurrentScene()
	choice := scene.Choice(choiceID)
	if choice == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownChoice, choiceID)
	}

	from := scene.ID
	next, vars, ok := e.nav.ResolveChoice(*choice, rules.FactsOf(e.state))
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrChoiceNotAvailable, choiceID)
	}
	e.state.GameVariables = vars
	e.state.PlayerChoices = append(e.state.PlayerChoices, choiceID)
	e.state.CurrentSceneID = next.ID

	e.logger.Debug("Choice submitted",
		zap.String("choiceID", choiceID),
		zap.String("from", from),
		zap.String("to", next.ID),
	)
	e.emit(messaging.EventChoiceSubmitted, map[string]any{"choiceId": choiceID, "from": from})
	e.emit(messaging.EventSceneChanged, map[string]any{"from": from})
	e.checkTriggerLocked(next)
	return nil
}

// JumpToScene moves to sceneID without checking any conditions. It
// returns false when there is no session or the scene is unknown.
func (e *Engine) JumpToScene(ctx context.Context, sceneID string) bool {
	e.mu.Lock()
	defer e.unlock(ctx)
	return e.navigateLocked(sceneID)
}

func (e *Engine) navigateLocked(sceneID string) bool {
	if e.state == nil {
		return false
	}
	from := e.state.CurrentSceneID
	if !e.nav.JumpToScene(sceneID) {
		e.logger.Warn("Navigation target not found", zap.String("sceneID", sceneID))
		return false
	}
	scene := e.nav.CurrentScene()
	e.state.CurrentSceneID = scene.ID
	e.emit(messaging.EventSceneChanged, map[string]any{"from": from})
	e.checkTriggerLocked(scene)
	return true
}

// checkTriggerLocked starts the scene's mini-game when its condition holds.
func (e *Engine) checkTriggerLocked(scene *domain.Scene) {
	if scene == nil || scene.MiniGame == nil || e.state == nil {
		return
	}
	trigger := scene.MiniGame
	if trigger.Condition != nil && !rules.EvaluateCondition(*trigger.Condition, rules.FactsOf(e.state)) {
		e.logger.Debug("Mini-game trigger condition not met", zap.String("gameID", trigger.GameID))
		return
	}
	if e.dispatcher.Start(trigger.GameID, nil) {
		e.emit(messaging.EventMiniGameStarted, map[string]any{"gameId": trigger.GameID})
	}
}

// Save writes the current state to slotID. An empty name gets the
// store's default.
func (e *Engine) Save(ctx context.Context, slotID int, name string, opts ...save.SaveOption) (domain.SaveSlot, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	if e.state == nil {
		return domain.SaveSlot{}, domain.ErrNoActiveSession
	}
	slot, err := e.store.CreateSave(ctx, slotID, e.state, name, opts...)
	saveOperations.WithLabelValues("save", outcome(err)).Inc()
	if err != nil {
		return domain.SaveSlot{}, err
	}
	e.state.LastSaved = slot.GameState.LastSaved
	e.emit(messaging.EventGameSaved, map[string]any{"slotId": slotID, "name": slot.Name})
	return slot, nil
}

// Load restores the state saved in slotID and points the navigator at it.
// On failure the current session is left as it was.
func (e *Engine) Load(ctx context.Context, slotID int) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	err := e.loadLocked(ctx, slotID)
	saveOperations.WithLabelValues("load", outcome(err)).Inc()
	return err
}

func (e *Engine) loadLocked(ctx context.Context, slotID int) error {
	state, err := e.store.LoadSave(ctx, slotID)
	if err != nil {
		return err
	}
	if err := e.nav.Restore(state.StoryID, state.CurrentSceneID); err != nil {
		return fmt.Errorf("failed to restore slot %d at %s/%s: %w", slotID, state.StoryID, state.CurrentSceneID, err)
	}
	e.dispatcher.End()
	e.state = state
	e.startPlayTimeLocked()

	e.logger.Info("Game loaded",
		zap.Int("slotID", slotID),
		zap.String("storyID", state.StoryID),
		zap.String("sceneID", state.CurrentSceneID),
	)
	e.emit(messaging.EventGameLoaded, map[string]any{"slotId": slotID})
	return nil
}

// DeleteSave removes slotID. Deleting an empty slot succeeds.
func (e *Engine) DeleteSave(ctx context.Context, slotID int) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	err := e.store.DeleteSave(ctx, slotID)
	saveOperations.WithLabelValues("delete", outcome(err)).Inc()
	if err != nil {
		return err
	}
	e.emit(messaging.EventSaveDeleted, map[string]any{"slotId": slotID})
	return nil
}

// SaveSlots lists occupied slots ascending by id.
func (e *Engine) SaveSlots() []domain.SaveSlot {
	return e.store.ListSlots()
}

// EmptySlotID returns the lowest free slot.
func (e *Engine) EmptySlotID() (int, bool) {
	return e.store.EmptySlotID()
}

// MaxSaveSlots returns the slot id range upper bound.
func (e *Engine) MaxSaveSlots() int {
	return e.store.MaxSlots()
}

// MergeVariables shallow-merges patch into the game variables.
func (e *Engine) MergeVariables(ctx context.Context, patch map[string]any) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	if e.state == nil {
		return domain.ErrNoActiveSession
	}
	e.mergeLocked(patch)
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	e.emit(messaging.EventVariablesMerged, map[string]any{"keys": keys})
	return nil
}

func (e *Engine) mergeLocked(patch map[string]any) {
	if e.state.GameVariables == nil {
		e.state.GameVariables = domain.Variables{}
	}
	for k, v := range patch {
		e.state.GameVariables[k] = domain.NormalizeValue(v)
	}
}

// ToggleAutoAdvance flips the renderer pacing flag and returns the new value.
func (e *Engine) ToggleAutoAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoAdvance = !e.autoAdvance
	return e.autoAdvance
}

// AutoAdvance returns the renderer pacing flag.
func (e *Engine) AutoAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoAdvance
}

// Stories returns the catalog.
func (e *Engine) Stories() []domain.Story {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.Stories()
}

// CurrentStory returns the current story, or nil before StartStory/Load.
func (e *Engine) CurrentStory() *domain.Story {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.CurrentStory()
}

// CurrentScene returns the current scene, or nil.
func (e *Engine) CurrentScene() *domain.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.CurrentScene()
}

// State returns a copy of the game state, or nil when no session exists.
func (e *Engine) State() *domain.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// AvailableChoices returns the current scene's choices whose conditions hold.
func (e *Engine) AvailableChoices() []domain.Choice {
	e.mu.Lock()
	defer e.mu.Unlock()

	scene := e.nav.CurrentScene()
	if scene == nil || e.state == nil {
		return nil
	}
	facts := rules.FactsOf(e.state)
	var out []domain.Choice
	for _, c := range scene.Choices {
		if rules.EvaluateConditions(c.Conditions, facts) {
			out = append(out, c)
		}
	}
	return out
}

// Cleanup stops play-time accumulation and any running mini-game. It is
// idempotent; the session state itself is kept.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlayTimeLocked()
	e.dispatcher.End()
}

// Close cleans up and stops the engine's own scheduler, if it has one.
func (e *Engine) Close() {
	e.Cleanup()
	if e.ownSched != nil {
		e.ownSched.Close()
	}
}
