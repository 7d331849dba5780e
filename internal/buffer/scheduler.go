package buffer

import (
	"log/slog"
	"sync"
	"time"
)

// FireFunc is invoked once per uninterrupted debounce window, from the
// timer's own goroutine.
type FireFunc func(key string)

// pendingTimer is one armed single-shot timer. At most one per key is
// installed in the scheduler map; a superseded instance may still have its
// AfterFunc in flight, which onFire suppresses by identity.
type pendingTimer struct {
	timer *time.Timer
}

// Scheduler owns the per-conversation debounce timers. Arming a key while
// a timer is live supersedes it with a fresh full-length window; the
// cancel/fire race has a deterministic winner: whoever holds the mutex
// first either removes the entry (fire) or replaces it (cancel), and the
// loser observes the map and no-ops.
type Scheduler struct {
	window   time.Duration
	fire     FireFunc
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]*pendingTimer
	stopped bool
}

func NewScheduler(log *slog.Logger, window time.Duration, registry *Registry, fire FireFunc) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Scheduler{
		window:   window,
		fire:     fire,
		registry: registry,
		logger:   log.With(slog.String("service", "scheduler")),
		timers:   map[string]*pendingTimer{},
	}
}

// Arm schedules settlement for key after one full debounce window,
// superseding any timer already live for the same key.
func (s *Scheduler) Arm(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
		s.registry.MarkCancelled(key)
		s.logger.Debug("debounce reset", slog.String("chat_id", key))
	}
	p := &pendingTimer{}
	p.timer = time.AfterFunc(s.window, func() { s.onFire(key, p) })
	s.timers[key] = p
	s.registry.MarkArmed(key)
}

// Cancel drops the live timer for key, if any. Superseded or already-fired
// timers are not an error.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.timers[key]; ok {
		p.timer.Stop()
		delete(s.timers, key)
		s.registry.MarkCancelled(key)
	}
}

// Live reports whether key currently has an armed timer.
func (s *Scheduler) Live(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels all live timers. Armed windows never settle after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, p := range s.timers {
		p.timer.Stop()
		s.registry.MarkCancelled(key)
		delete(s.timers, key)
	}
}

// onFire runs in the AfterFunc goroutine when a window elapses. The
// identity check makes supersession race-free: if Arm replaced this entry
// between expiry and lock acquisition, the fire is fully suppressed.
func (s *Scheduler) onFire(key string, p *pendingTimer) {
	s.mu.Lock()
	cur, ok := s.timers[key]
	if !ok || cur != p || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.registry.MarkFired(key)
	s.mu.Unlock()

	if s.fire != nil {
		s.fire(key)
	}
}
