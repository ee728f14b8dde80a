package engine

// startPlayTimeLocked replaces any running play-time job with a new one.
func (e *Engine) startPlayTimeLocked() {
	e.stopPlayTimeLocked()
	e.playGen++
	gen := e.playGen
	e.playtime = e.sched.Every(e.tick, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		// a stopped job may still deliver one racing tick
		if gen != e.playGen || e.playtime == nil || e.state == nil {
			return
		}
		e.state.PlayTime++
		playTimeSeconds.Inc()
	})
}

func (e *Engine) stopPlayTimeLocked() {
	if e.playtime == nil {
		return
	}
	e.playtime.Stop()
	e.playtime = nil
	e.playGen++
}

// PlayTimeRunning reports whether play time is accumulating.
func (e *Engine) PlayTimeRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playtime != nil
}
