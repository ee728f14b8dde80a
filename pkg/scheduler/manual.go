package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manual is a Scheduler driven by Advance instead of wall-clock time.
type Manual struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job
	seq  map[uuid.UUID]int
	next int
}

var _ Scheduler = (*Manual)(nil)

// NewManual creates a scheduler whose clock only moves on Advance.
func NewManual() *Manual {
	return &Manual{
		jobs: make(map[uuid.UUID]*job),
		seq:  make(map[uuid.UUID]int),
	}
}

// Every implements Scheduler.
func (m *Manual) Every(interval time.Duration, fn func()) Handle {
	j := &job{id: uuid.New(), interval: interval, fn: fn, remove: m.remove}
	if interval <= 0 {
		return j
	}
	m.mu.Lock()
	m.jobs[j.id] = j
	m.seq[j.id] = m.next
	m.next++
	m.mu.Unlock()
	return j
}

func (m *Manual) remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.jobs, id)
	delete(m.seq, id)
	m.mu.Unlock()
}

// Advance moves the clock forward by d, firing every due tick in
// registration order. Jobs are called without the scheduler lock held, so
// they may stop themselves or register new jobs; a job stopped during
// Advance receives no further ticks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	type due struct {
		j     *job
		ticks int
	}
	var pending []due
	for _, j := range m.jobs {
		j.elapsed += d
		n := int(j.elapsed / j.interval)
		j.elapsed -= time.Duration(n) * j.interval
		if n > 0 {
			pending = append(pending, due{j, n})
		}
	}
	sort.Slice(pending, func(a, b int) bool { return m.seq[pending[a].j.id] < m.seq[pending[b].j.id] })
	m.mu.Unlock()

	for _, p := range pending {
		for i := 0; i < p.ticks; i++ {
			if !m.live(p.j.id) {
				break
			}
			p.j.fn()
		}
	}
}

func (m *Manual) live(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[id]
	return ok
}

// Len returns the number of live jobs.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
