package buffer

import (
	"sync"
	"time"
)

// TimerState is the registry-visible outcome of one armed timer.
type TimerState string

const (
	TimerArmed     TimerState = "armed"
	TimerFired     TimerState = "fired"
	TimerCancelled TimerState = "cancelled"
)

// registryEntry keeps the latest state per conversation key. Completed
// entries are harmless but unbounded, so Sweep trims them periodically.
type registryEntry struct {
	state   TimerState
	armedAt time.Time
}

// TimerSnapshot is the introspection view of one registry entry.
type TimerSnapshot struct {
	ConversationKey string     `json:"conversation_key"`
	State           TimerState `json:"state"`
	ArmedAt         time.Time  `json:"armed_at"`
}

// Registry tracks which conversations have in-flight debounce windows.
// Safe for concurrent use from the coordinator, scheduler, and sweeper.
type Registry struct {
	mu      sync.Mutex
	entries map[string]registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]registryEntry{}}
}

func (r *Registry) MarkArmed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = registryEntry{state: TimerArmed, armedAt: time.Now()}
}

func (r *Registry) MarkFired(key string) {
	r.markDone(key, TimerFired)
}

func (r *Registry) MarkCancelled(key string) {
	r.markDone(key, TimerCancelled)
}

func (r *Registry) markDone(key string, state TimerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.state = state
	r.entries[key] = e
}

// HasLive reports whether key has an armed, not-yet-resolved timer.
func (r *Registry) HasLive(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[key].state == TimerArmed
}

// Sweep removes entries whose timers already fired or were cancelled and
// returns how many were removed. Keeps memory bounded by the number of
// genuinely in-flight windows.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, e := range r.entries {
		if e.state != TimerArmed {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of all entries for introspection.
func (r *Registry) Snapshot() []TimerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TimerSnapshot, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, TimerSnapshot{ConversationKey: key, State: e.state, ArmedAt: e.armedAt})
	}
	return out
}

// Len reports the current entry count, swept or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
