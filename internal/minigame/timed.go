package minigame

import (
	"sync"
	"time"

	"story-engine/internal/domain"
	"story-engine/pkg/scheduler"
)

// TimedSession is a generic session with an optional countdown. The play
// logic itself lives outside the engine and reports through Finish/Abandon.
// When timeLimit > 0 the countdown ticks once per second while active and
// not paused; reaching zero completes the session as a failure with
// data {"reason": "timeout"}.
type TimedSession struct {
	mu        sync.Mutex
	limit     int
	remaining int
	score     float64
	active    bool
	paused    bool
	done      bool

	hooks Hooks
	sched scheduler.Scheduler
	timer scheduler.Handle
}

var _ Session = (*TimedSession)(nil)

// NewTimedSession is a Factory.
func NewTimedSession(cfg domain.MiniGameConfig, hooks Hooks, sched scheduler.Scheduler) (Session, error) {
	limit := cfg.TimeLimit()
	return &TimedSession{
		limit:     limit,
		remaining: limit,
		hooks:     hooks,
		sched:     sched,
	}, nil
}

func (s *TimedSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.active = true
	s.paused = false
	s.startTimerLocked()
	return nil
}

func (s *TimedSession) startTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.limit <= 0 || s.sched == nil {
		return
	}
	s.timer = s.sched.Every(time.Second, s.tick)
}

func (s *TimedSession) tick() {
	s.mu.Lock()
	if s.done || !s.active || s.paused {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}
	score := s.score
	s.mu.Unlock()

	s.Finish(domain.GameResult{
		Success: false,
		Score:   &score,
		Data:    map[string]any{"reason": "timeout"},
	})
}

func (s *TimedSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.paused = true
	}
}

func (s *TimedSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.paused = false
	}
}

// Reset restores the initial countdown and score and keeps the session running.
func (s *TimedSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.remaining = s.limit
	s.score = 0
	s.paused = false
	if s.active {
		s.startTimerLocked()
	}
}

// AddScore adds delta to the running score.
func (s *TimedSession) AddScore(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.score += delta
	}
}

func (s *TimedSession) Finish(result domain.GameResult) {
	if !s.end() {
		return
	}
	if s.hooks.Complete != nil {
		s.hooks.Complete(result)
	}
}

func (s *TimedSession) Abandon() {
	if !s.end() {
		return
	}
	if s.hooks.Exit != nil {
		s.hooks.Exit()
	}
}

func (s *TimedSession) Stop() {
	s.end()
}

// end marks the session finished and reports whether this call did it.
func (s *TimedSession) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.done = true
	s.active = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return true
}

func (s *TimedSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		IsActive: s.active,
		IsPaused: s.paused,
		Score:    s.score,
	}
	if s.limit > 0 {
		remaining := s.remaining
		st.TimeRemaining = &remaining
	}
	return st
}
