// Package scheduler runs periodic jobs. It backs the engine's play-time
// counter and mini-game countdowns, and has a manual clock for tests.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Scheduler registers periodic jobs.
type Scheduler interface {
	// Every runs fn once per interval until the returned handle is stopped.
	Every(interval time.Duration, fn func()) Handle
}

// Handle identifies a scheduled job.
type Handle interface {
	ID() uuid.UUID
	// Stop cancels the job. It does not wait for a tick that is already
	// running, so fn may observe one more call racing with Stop.
	Stop()
}

type job struct {
	id       uuid.UUID
	interval time.Duration
	fn       func()
	cancel   context.CancelFunc
	stopOnce sync.Once
	remove   func(uuid.UUID)

	// used by Manual
	elapsed time.Duration
}

func (j *job) ID() uuid.UUID { return j.id }

func (j *job) Stop() {
	j.stopOnce.Do(func() {
		if j.cancel != nil {
			j.cancel()
		}
		j.remove(j.id)
	})
}

// Ticker runs jobs on real time.Tickers, one goroutine per job.
type Ticker struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*job
	wg      sync.WaitGroup
	closing chan struct{}
	closed  bool
}

var _ Scheduler = (*Ticker)(nil)

// NewTicker creates a real-time scheduler.
func NewTicker() *Ticker {
	return &Ticker{
		jobs:    make(map[uuid.UUID]*job),
		closing: make(chan struct{}),
	}
}

// Every implements Scheduler. Jobs registered after Close never fire.
func (t *Ticker) Every(interval time.Duration, fn func()) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:       uuid.New(),
		interval: interval,
		fn:       fn,
		cancel:   cancel,
		remove:   t.remove,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || interval <= 0 {
		cancel()
		return j
	}
	t.jobs[j.id] = j

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.run(ctx, j)
	}()

	log.Debug().Str("jobID", j.id.String()).Dur("interval", interval).Msg("job scheduled")
	return j
}

func (t *Ticker) run(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("jobID", j.id.String()).Msg("job stopped")
			return
		case <-t.closing:
			return
		case <-ticker.C:
			// A stop may have raced with the tick.
			if ctx.Err() != nil {
				return
			}
			j.fn()
		}
	}
}

func (t *Ticker) remove(id uuid.UUID) {
	t.mu.Lock()
	delete(t.jobs, id)
	t.mu.Unlock()
}

// Len returns the number of live jobs.
func (t *Ticker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Close stops every job and waits for their goroutines to exit.
// Must not be called from inside a job.
func (t *Ticker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.closing)
	for _, j := range t.jobs {
		j.cancel()
	}
	t.jobs = make(map[uuid.UUID]*job)
	t.mu.Unlock()

	t.wg.Wait()
	log.Info().Msg("scheduler closed")
}
