package minigame

import (
	"errors"
	"testing"
	"time"

	"story-engine/internal/domain"
	"story-engine/pkg/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	completed   []domain.GameResult
	games       []string
	transitions []string
	exits       []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnGameComplete: func(game domain.MiniGame, result domain.GameResult) {
			r.games = append(r.games, game.ID)
			r.completed = append(r.completed, result)
		},
		OnSceneTransition: func(sceneID string) { r.transitions = append(r.transitions, sceneID) },
		OnGameExit:        func(game domain.MiniGame) { r.exits = append(r.exits, game.ID) },
	}
}

func puzzle() domain.MiniGame {
	return domain.MiniGame{
		ID:           "puzzle1",
		Type:         domain.MiniGamePuzzle,
		Config:       domain.MiniGameConfig{"difficulty": "easy", "timeLimit": 3},
		SuccessScene: "win",
		FailureScene: "lose",
		RetryAllowed: true,
	}
}

func newDispatcher(t *testing.T, rec *recorder) (*Dispatcher, *scheduler.Manual) {
	t.Helper()
	sched := scheduler.NewManual()
	d := NewDispatcher(Options{
		Scheduler: sched,
		Callbacks: rec.callbacks(),
		Logger:    zap.NewNop(),
	})
	d.Register(puzzle())
	d.Register(domain.MiniGame{ID: "quiz1", Type: domain.MiniGameQuiz, SuccessScene: "a", FailureScene: "b"})
	return d, sched
}

func TestStartUnknownGame(t *testing.T) {
	rec := &recorder{}
	d, _ := newDispatcher(t, rec)
	assert.False(t, d.Start("nope", nil))
	assert.Nil(t, d.Current())
	assert.False(t, d.Active())
}

func TestCompletionRoutesToScene(t *testing.T) {
	for _, tc := range []struct {
		name    string
		success bool
		scene   string
	}{
		{"success", true, "win"},
		{"failure", false, "lose"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d, _ := newDispatcher(t, rec)
			require.True(t, d.Start("puzzle1", nil))
			assert.True(t, d.Active())

			score := 42.0
			require.True(t, d.Finish(domain.GameResult{Success: tc.success, Score: &score}))

			assert.Equal(t, []string{"puzzle1"}, rec.games)
			assert.Equal(t, []string{tc.scene}, rec.transitions)
			assert.Nil(t, d.Current(), "dispatcher is idle after completion")
			assert.False(t, d.Finish(domain.GameResult{}))
		})
	}
}

func TestTimeout(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)
	require.True(t, d.Start("puzzle1", nil))

	sched.Advance(2 * time.Second)
	st, ok := d.SessionState()
	require.True(t, ok)
	require.NotNil(t, st.TimeRemaining)
	assert.Equal(t, 1, *st.TimeRemaining)

	sched.Advance(time.Second)
	require.Len(t, rec.completed, 1)
	assert.False(t, rec.completed[0].Success)
	assert.Equal(t, map[string]any{"reason": "timeout"}, rec.completed[0].Data)
	assert.Equal(t, []string{"lose"}, rec.transitions)
	assert.Zero(t, sched.Len(), "timer stopped")
}

func TestPauseStopsCountdown(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)

	assert.False(t, d.Pause())
	assert.False(t, d.Resume())
	assert.False(t, d.Reset())

	require.True(t, d.Start("puzzle1", nil))
	require.True(t, d.Pause())
	sched.Advance(10 * time.Second)
	assert.Empty(t, rec.completed)
	st, _ := d.SessionState()
	assert.True(t, st.IsPaused)
	assert.Equal(t, 3, *st.TimeRemaining)

	require.True(t, d.Resume())
	sched.Advance(2 * time.Second)
	require.True(t, d.Reset())
	st, _ = d.SessionState()
	assert.Equal(t, 3, *st.TimeRemaining)
	sched.Advance(3 * time.Second)
	assert.Len(t, rec.completed, 1)
}

func TestConfigOverride(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)
	require.True(t, d.Start("puzzle1", domain.MiniGameConfig{"timeLimit": 1}))
	sched.Advance(time.Second)
	assert.Len(t, rec.completed, 1)

	g, ok := d.Game("puzzle1")
	require.True(t, ok)
	assert.Equal(t, 3, g.Config.TimeLimit(), "registered config untouched")
}

func TestAtMostOneSession(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)

	require.True(t, d.Start("puzzle1", nil))
	first, _ := d.SessionState()
	require.True(t, first.IsActive)

	require.True(t, d.Start("quiz1", nil))
	assert.Equal(t, "quiz1", d.Current().ID)
	assert.Equal(t, 0, sched.Len(), "first session's timer stopped, quiz has no limit")

	// no callbacks for the forcibly ended session
	sched.Advance(time.Minute)
	assert.Empty(t, rec.completed)
	assert.Empty(t, rec.exits)
}

func TestStaleHooksIgnored(t *testing.T) {
	rec := &recorder{}
	var hooks []Hooks
	reg := NewRegistry()
	reg.Register(domain.MiniGamePuzzle, func(cfg domain.MiniGameConfig, h Hooks, s scheduler.Scheduler) (Session, error) {
		hooks = append(hooks, h)
		return NewTimedSession(cfg, Hooks{}, s)
	})
	d := NewDispatcher(Options{Registry: reg, Callbacks: rec.callbacks()})
	d.Register(puzzle())

	require.True(t, d.Start("puzzle1", nil))
	require.True(t, d.Start("puzzle1", nil))
	require.Len(t, hooks, 2)

	hooks[0].Complete(domain.GameResult{Success: true})
	hooks[0].Exit()
	assert.Empty(t, rec.completed)
	assert.Empty(t, rec.exits)

	hooks[1].Complete(domain.GameResult{Success: true})
	hooks[1].Complete(domain.GameResult{Success: true})
	assert.Len(t, rec.completed, 1)
}

func TestExit(t *testing.T) {
	rec := &recorder{}
	d, _ := newDispatcher(t, rec)
	assert.False(t, d.Exit())

	require.True(t, d.Start("puzzle1", nil))
	require.True(t, d.Exit())
	assert.Equal(t, []string{"puzzle1"}, rec.exits)
	assert.Empty(t, rec.transitions)
	assert.Nil(t, d.Current())
}

func TestRetry(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)

	assert.False(t, d.Retry(), "idle")
	require.True(t, d.Start("quiz1", nil))
	assert.False(t, d.CanRetry())
	assert.False(t, d.Retry())

	require.True(t, d.Start("puzzle1", nil))
	sched.Advance(2 * time.Second)
	require.True(t, d.CanRetry())
	require.True(t, d.Retry())
	st, _ := d.SessionState()
	assert.Equal(t, 3, *st.TimeRemaining)
}

func TestAddScoreReachesSession(t *testing.T) {
	rec := &recorder{}
	d, sched := newDispatcher(t, rec)

	assert.False(t, d.AddScore(1), "idle")

	require.True(t, d.Start("puzzle1", nil))
	require.True(t, d.AddScore(4))
	require.True(t, d.AddScore(4))
	st, ok := d.SessionState()
	require.True(t, ok)
	assert.Equal(t, 8.0, st.Score)

	sched.Advance(3 * time.Second)
	require.Len(t, rec.completed, 1)
	assert.Equal(t, 8.0, rec.completed[0].ScoreOrZero(), "timeout reports the accumulated score")
	assert.False(t, d.AddScore(1), "session ended")
}

func TestFactoryFailureLeavesIdle(t *testing.T) {
	reg := NewRegistry()
	reg.Register(domain.MiniGameMemory, func(domain.MiniGameConfig, Hooks, scheduler.Scheduler) (Session, error) {
		return nil, errors.New("no assets")
	})
	d := NewDispatcher(Options{Registry: reg})
	d.Register(domain.MiniGame{ID: "m", Type: domain.MiniGameMemory, SuccessScene: "a", FailureScene: "b"})
	d.Register(domain.MiniGame{ID: "r", Type: domain.MiniGameReflex, SuccessScene: "a", FailureScene: "b"})

	assert.False(t, d.Start("m", nil))
	assert.False(t, d.Start("r", nil), "type without a factory")
	assert.Nil(t, d.Current())
}

func TestCallbackMayStartNextGame(t *testing.T) {
	var d *Dispatcher
	d = NewDispatcher(Options{Callbacks: Callbacks{
		OnSceneTransition: func(string) { d.Start("quiz1", nil) },
	}})
	d.Register(puzzle())
	d.Register(domain.MiniGame{ID: "quiz1", Type: domain.MiniGameQuiz, SuccessScene: "a", FailureScene: "b"})

	require.True(t, d.Start("puzzle1", nil))
	require.True(t, d.Finish(domain.GameResult{Success: true}))
	require.NotNil(t, d.Current())
	assert.Equal(t, "quiz1", d.Current().ID)
}

func TestAvailableAndRegistry(t *testing.T) {
	d, _ := newDispatcher(t, &recorder{})
	games := d.Available()
	require.Len(t, games, 2)
	assert.Equal(t, "puzzle1", games[0].ID)

	assert.Equal(t, []domain.MiniGameType{"memory", "puzzle", "quiz", "reflex"}, DefaultRegistry().Types())
}

func TestExecutorWrapsTicks(t *testing.T) {
	sched := scheduler.NewManual()
	var wrapped int
	d := NewDispatcher(Options{
		Scheduler: sched,
		Executor:  func(fn func()) { wrapped++; fn() },
	})
	d.Register(puzzle())
	require.True(t, d.Start("puzzle1", nil))
	sched.Advance(2 * time.Second)
	assert.Equal(t, 2, wrapped)
}
