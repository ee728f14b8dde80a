// Package minigame runs mini-game sessions and routes their results back
// to the engine.
package minigame

import (
	"fmt"
	"sort"

	"story-engine/internal/domain"
	"story-engine/pkg/scheduler"
)

// State is a snapshot of a running session.
type State struct {
	IsActive      bool    `json:"isActive"`
	IsPaused      bool    `json:"isPaused"`
	TimeRemaining *int    `json:"timeRemaining,omitempty"`
	Score         float64 `json:"score"`
}

// Hooks are how a session reports back. Each session calls at most one of
// them, at most once.
type Hooks struct {
	Complete func(result domain.GameResult)
	Exit     func()
}

// Session is one live mini-game instance.
type Session interface {
	Start() error
	Pause()
	Resume()
	Reset()
	// AddScore adds delta to the running score.
	AddScore(delta float64)
	// Finish completes the session with result.
	Finish(result domain.GameResult)
	// Abandon ends the session as a player exit.
	Abandon()
	// Stop halts the session's timers without reporting anything.
	Stop()
	State() State
}

// Factory builds a session from the merged config. sched must be used for
// any periodic work so that ticks are serialised with the engine.
type Factory func(cfg domain.MiniGameConfig, hooks Hooks, sched scheduler.Scheduler) (Session, error)

// Registry maps variant tags to factories.
type Registry struct {
	factories map[domain.MiniGameType]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.MiniGameType]Factory)}
}

// DefaultRegistry backs every known variant with a TimedSession.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []domain.MiniGameType{
		domain.MiniGamePuzzle,
		domain.MiniGameReflex,
		domain.MiniGameMemory,
		domain.MiniGameQuiz,
	} {
		r.Register(t, NewTimedSession)
	}
	return r
}

// Register sets the factory for a variant tag.
func (r *Registry) Register(t domain.MiniGameType, f Factory) {
	r.factories[t] = f
}

// Types lists the registered tags.
func (r *Registry) Types() []domain.MiniGameType {
	out := make([]domain.MiniGameType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds a session of type t.
func (r *Registry) New(t domain.MiniGameType, cfg domain.MiniGameConfig, hooks Hooks, sched scheduler.Scheduler) (Session, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("unsupported mini-game type %q", t)
	}
	return f(cfg, hooks, sched)
}
