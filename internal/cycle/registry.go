// Package cycle manages the lifetime of named, looping patterns: install,
// deferred (bar-aligned) update, and removal, plus a FIFO queue for
// program submissions that should not take effect until the next bar.
package cycle

import (
	"sync"

	"github.com/cartomix/barline/internal/dsl"
)

// QueueItem is one program waiting for the next bar boundary to install.
type QueueItem struct {
	Kind    string // "track" or "cycle"
	ID      string // only meaningful for Kind == "cycle"
	Program *dsl.Program
}

type cycleState struct {
	program *dsl.Program
	pending *dsl.Program
}

// Registry tracks every currently-playing cycle by id.
type Registry struct {
	mu     sync.Mutex
	cycles map[string]*cycleState
	queue  []QueueItem
}

// NewRegistry returns an empty cycle registry.
func NewRegistry() *Registry {
	return &Registry{cycles: make(map[string]*cycleState)}
}

// PlayCycle installs id to start playing program immediately: it enters
// the registry's snapshot (so it is re-fired every subsequent bar) and
// the caller is expected to render its first firing synchronously too,
// rather than waiting for the next bar tick.
func (r *Registry) PlayCycle(id string, program *dsl.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles[id] = &cycleState{program: program}
}

// UpdateCycleById stages program as a pending replacement for id, applied
// at the next bar boundary rather than immediately — this is what keeps a
// live edit to a looping cycle from splicing in mid-bar. Returns false if
// id is not currently playing.
func (r *Registry) UpdateCycleById(id string, program *dsl.Program) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.cycles[id]
	if !ok {
		return false
	}
	cs.pending = program
	return true
}

// ClearCycleById removes id immediately.
func (r *Registry) ClearCycleById(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cycles, id)
}

// ClearAllCycles removes every active cycle immediately.
func (r *Registry) ClearAllCycles() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = make(map[string]*cycleState)
}

// IsPlaying reports whether id currently names an active cycle.
func (r *Registry) IsPlaying(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cycles[id]
	return ok
}

// Enqueue appends item to the bar-aligned submission queue; it is
// installed (or, for a cycle update, applied) the next time OnBarTick
// runs.
func (r *Registry) Enqueue(item QueueItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, item)
}

// OnBarTick promotes every pending cycle update into place and drains the
// submission queue in FIFO order, returning the drained items for the
// caller (the engine) to install — track items fire once, cycle items
// start a new looping cycle.
func (r *Registry) OnBarTick() []QueueItem {
	r.mu.Lock()
	for _, cs := range r.cycles {
		if cs.pending != nil {
			cs.program = cs.pending
			cs.pending = nil
		}
	}
	drained := r.queue
	r.queue = nil
	r.mu.Unlock()
	return drained
}

// Snapshot returns the program currently active for every playing cycle,
// for the engine to re-fire each bar.
func (r *Registry) Snapshot() map[string]*dsl.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*dsl.Program, len(r.cycles))
	for id, cs := range r.cycles {
		out[id] = cs.program
	}
	return out
}
