package minigame

import (
	"sort"
	"time"

	"story-engine/internal/domain"
	"story-engine/pkg/scheduler"

	"go.uber.org/zap"
)

// Callbacks connect the dispatcher to its owner. They run after the
// session has been detached, so the dispatcher is Idle while they execute
// and a callback may start another game.
type Callbacks struct {
	OnGameComplete    func(game domain.MiniGame, result domain.GameResult)
	OnSceneTransition func(sceneID string)
	OnGameExit        func(game domain.MiniGame)
}

// Executor runs fn serialised with every other dispatcher call.
type Executor func(fn func())

// Options configures a Dispatcher.
type Options struct {
	Registry  *Registry
	Scheduler scheduler.Scheduler
	// Executor wraps session timer ticks. Defaults to calling fn directly,
	// which is only correct when ticks arrive on the caller's goroutine
	// (scheduler.Manual).
	Executor  Executor
	Callbacks Callbacks
	Logger    *zap.Logger
}

// Dispatcher owns the mini-game catalog and at most one running session.
// It is not safe for concurrent use; its owner serialises calls and passes
// the same serialisation as Executor.
type Dispatcher struct {
	games     map[string]domain.MiniGame
	registry  *Registry
	sched     scheduler.Scheduler
	callbacks Callbacks
	logger    *zap.Logger

	current *domain.MiniGame
	session Session
}

// NewDispatcher creates an idle dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Executor == nil {
		opts.Executor = func(fn func()) { fn() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var sched scheduler.Scheduler
	if opts.Scheduler != nil {
		sched = serialScheduler{inner: opts.Scheduler, exec: opts.Executor}
	}
	return &Dispatcher{
		games:     make(map[string]domain.MiniGame),
		registry:  opts.Registry,
		sched:     sched,
		callbacks: opts.Callbacks,
		logger:    opts.Logger.Named("MiniGameDispatcher"),
	}
}

// serialScheduler routes every tick through the executor.
type serialScheduler struct {
	inner scheduler.Scheduler
	exec  Executor
}

func (s serialScheduler) Every(interval time.Duration, fn func()) scheduler.Handle {
	return s.inner.Every(interval, func() { s.exec(fn) })
}

// Register adds or replaces a catalog entry.
func (d *Dispatcher) Register(game domain.MiniGame) {
	d.games[game.ID] = game
	d.logger.Debug("Mini-game registered", zap.String("gameID", game.ID), zap.String("type", string(game.Type)))
}

// Start launches gameID with override merged over its registered config.
// A running session is ended first without reporting. It returns false
// when the id is unknown or the session could not be built or started; the
// dispatcher is Idle afterwards in that case.
func (d *Dispatcher) Start(gameID string, override domain.MiniGameConfig) bool {
	game, ok := d.games[gameID]
	if !ok {
		d.logger.Error("Mini-game not found", zap.String("gameID", gameID))
		return false
	}

	if d.session != nil {
		d.logger.Info("Ending running mini-game before starting another",
			zap.String("runningGameID", d.current.ID),
			zap.String("gameID", gameID),
		)
		d.End()
	}

	cfg := game.Config.Merge(override)
	var sess Session
	hooks := Hooks{
		Complete: func(result domain.GameResult) { d.handleComplete(sess, result) },
		Exit:     func() { d.handleExit(sess) },
	}
	sess, err := d.registry.New(game.Type, cfg, hooks, d.sched)
	if err != nil {
		d.logger.Error("Failed to create mini-game session", zap.String("gameID", gameID), zap.Error(err))
		return false
	}

	d.current = &game
	d.session = sess
	if err := sess.Start(); err != nil {
		d.logger.Error("Failed to start mini-game", zap.String("gameID", gameID), zap.Error(err))
		sess.Stop()
		if d.session == sess {
			d.current = nil
			d.session = nil
		}
		return false
	}

	d.logger.Info("Mini-game started",
		zap.String("gameID", gameID),
		zap.String("type", string(game.Type)),
		zap.Any("config", cfg),
	)
	return true
}

// handleComplete runs when sess reports a result. Reports from a session
// that is no longer current are ignored.
func (d *Dispatcher) handleComplete(sess Session, result domain.GameResult) {
	if sess == nil || sess != d.session {
		d.logger.Debug("Ignoring result from stale mini-game session")
		return
	}
	game := *d.current
	d.detach()

	d.logger.Info("Mini-game completed",
		zap.String("gameID", game.ID),
		zap.Bool("success", result.Success),
		zap.Float64("score", result.ScoreOrZero()),
	)
	if d.callbacks.OnGameComplete != nil {
		d.callbacks.OnGameComplete(game, result)
	}
	if d.callbacks.OnSceneTransition != nil {
		d.callbacks.OnSceneTransition(game.NextScene(result.Success))
	}
}

func (d *Dispatcher) handleExit(sess Session) {
	if sess == nil || sess != d.session {
		d.logger.Debug("Ignoring exit from stale mini-game session")
		return
	}
	game := *d.current
	d.detach()

	d.logger.Info("Mini-game exited", zap.String("gameID", game.ID))
	if d.callbacks.OnGameExit != nil {
		d.callbacks.OnGameExit(game)
	}
}

func (d *Dispatcher) detach() {
	d.current = nil
	d.session = nil
}

// End stops the running session, if any, without invoking callbacks.
func (d *Dispatcher) End() {
	if d.session == nil {
		return
	}
	sess := d.session
	d.detach()
	sess.Stop()
}

// Finish completes the running session with result, exactly as if the
// session had reported it. It returns false when Idle.
func (d *Dispatcher) Finish(result domain.GameResult) bool {
	if d.session == nil {
		return false
	}
	d.session.Finish(result)
	return true
}

// Exit abandons the running session. It returns false when Idle.
func (d *Dispatcher) Exit() bool {
	if d.session == nil {
		return false
	}
	d.session.Abandon()
	return true
}

func (d *Dispatcher) Pause() bool {
	if d.session == nil {
		return false
	}
	d.session.Pause()
	return true
}

func (d *Dispatcher) Resume() bool {
	if d.session == nil {
		return false
	}
	d.session.Resume()
	return true
}

func (d *Dispatcher) Reset() bool {
	if d.session == nil {
		return false
	}
	d.session.Reset()
	return true
}

// AddScore forwards a score update from the play logic to the session.
func (d *Dispatcher) AddScore(delta float64) bool {
	if d.session == nil {
		return false
	}
	d.session.AddScore(delta)
	return true
}

// CanRetry reports whether the current game allows retries.
func (d *Dispatcher) CanRetry() bool {
	return d.current != nil && d.current.RetryAllowed
}

// Retry restarts the current game from scratch.
func (d *Dispatcher) Retry() bool {
	if !d.CanRetry() {
		return false
	}
	return d.Start(d.current.ID, nil)
}

// Current returns a copy of the running game's catalog entry, or nil.
func (d *Dispatcher) Current() *domain.MiniGame {
	if d.current == nil {
		return nil
	}
	game := *d.current
	return &game
}

// Active reports whether a session is running.
func (d *Dispatcher) Active() bool {
	return d.session != nil && d.session.State().IsActive
}

// SessionState returns the running session's state.
func (d *Dispatcher) SessionState() (State, bool) {
	if d.session == nil {
		return State{}, false
	}
	return d.session.State(), true
}

// Available lists the catalog sorted by id.
func (d *Dispatcher) Available() []domain.MiniGame {
	out := make([]domain.MiniGame, 0, len(d.games))
	for _, g := range d.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Game returns a catalog entry.
func (d *Dispatcher) Game(gameID string) (domain.MiniGame, bool) {
	g, ok := d.games[gameID]
	return g, ok
}
