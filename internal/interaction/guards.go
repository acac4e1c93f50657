package interaction

import (
	"sync"
	"time"
)

// Guards tracks armed expiry timers, at most one per key.
//
// A timer only runs its callback if it is still the armed guard for its key when
// it fires. Cancelling, re-arming or an earlier firing all disarm it, so a stale
// timer never acts on a newer flow for the same key.
type Guards struct {
	mu     sync.Mutex
	guards map[Key]*guard
	seq    uint64
}

type guard struct {
	gen   uint64
	timer *time.Timer
}

// NewGuards creates an empty guard map
func NewGuards() *Guards {
	return &Guards{guards: make(map[Key]*guard)}
}

// Arm schedules fn to run after d unless the guard is cancelled or re-armed first
func (g *Guards) Arm(key Key, d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.guards[key]; ok {
		old.timer.Stop()
	}

	g.seq++
	gen := g.seq
	g.guards[key] = &guard{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			if g.release(key, gen) {
				fn()
			}
		}),
	}
}

// Cancel disarms the guard for key and reports whether one was armed
func (g *Guards) Cancel(key Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.guards[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(g.guards, key)
	return true
}

// Active reports whether a guard is armed for key
func (g *Guards) Active(key Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.guards[key]
	return ok
}

// StopAll disarms every guard without running callbacks
func (g *Guards) StopAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, cur := range g.guards {
		cur.timer.Stop()
		delete(g.guards, key)
	}
}

// release pops the guard if it still belongs to generation gen
func (g *Guards) release(key Key, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.guards[key]
	if !ok || cur.gen != gen {
		return false
	}
	delete(g.guards, key)
	return true
}
