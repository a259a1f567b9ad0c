// Package clock tracks the live transport state (tempo, time signature,
// song position) fed in by the control bus, and derives bar/beat crossings
// from it. It holds no knowledge of cycles or scheduling: callers that need
// to react to a bar boundary register with Subscribe.
package clock

import (
	"sync"

	"github.com/cartomix/barline/internal/dsl"
)

const (
	defaultTempo       = 120.0
	defaultNumerator   = 4
	defaultDenominator = 4
)

// Clock is safe for concurrent use; transport ingress writes to it from one
// goroutine while the engine and cycle manager read from others.
type Clock struct {
	mu sync.RWMutex

	tempo       float64
	numerator   int
	denominator int
	position    float64 // absolute song position, in quarter-note beats
	lastBar     int
	haveLastBar bool

	tempoSeen     bool
	numeratorSeen bool
	denomSeen     bool

	subscribers []func(bar, beat int)
}

// New returns a Clock at 120 BPM, 4/4, position zero, not yet initialized.
func New() *Clock {
	return &Clock{
		tempo:       defaultTempo,
		numerator:   defaultNumerator,
		denominator: defaultDenominator,
	}
}

// Subscribe registers a callback fired synchronously, on the caller's
// goroutine, whenever a Set* call crosses into a new bar. Order of
// registration is preserved but not otherwise meaningful.
func (c *Clock) Subscribe(fn func(bar, beat int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Initialized reports whether tempo, numerator, and denominator have each
// been observed at least once from the control bus. Until all three have
// arrived, bar/beat derivation is skipped and inbound messages only cache
// their values, per SPEC_FULL.md's "transport-not-initialized" error kind.
func (c *Clock) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initializedLocked()
}

func (c *Clock) initializedLocked() bool {
	return c.tempoSeen && c.numeratorSeen && c.denomSeen
}

// SetTempo updates BPM and records that tempo has been observed. Tempo
// alone never moves the bar grid, so on an initialized clock barChanged is
// false; it is still reported for a uniform Set* signature, per
// SPEC_FULL.md §4.1. If this is the observation that completes
// initialization, the cached position is recomputed, subscribers are
// notified, and barChanged reports that initial bar.
func (c *Clock) SetTempo(bpm float64) (barChanged bool) {
	if bpm <= 0 {
		return false
	}
	c.mu.Lock()
	c.tempo = bpm
	wasInitialized := c.initializedLocked()
	c.tempoSeen = true
	changed, bar, beat := c.maybeRecomputeLocked(wasInitialized)
	c.mu.Unlock()
	if changed {
		c.dispatch(bar, beat)
	}
	return changed
}

// SetNumerator updates the time signature numerator and records that it
// has been observed. Because this can shift where bar boundaries fall
// under the current song position, it is re-evaluated against the live
// position and may itself cross a bar (once initialized).
func (c *Clock) SetNumerator(n int) (barChanged bool) {
	if n <= 0 {
		return false
	}
	c.mu.Lock()
	c.numerator = n
	wasInitialized := c.initializedLocked()
	c.numeratorSeen = true
	changed, bar, beat := c.maybeRecomputeLocked(wasInitialized)
	c.mu.Unlock()
	if changed {
		c.dispatch(bar, beat)
	}
	return changed
}

// SetDenominator updates the time signature denominator and records that
// it has been observed; same shifting behavior as SetNumerator.
func (c *Clock) SetDenominator(d int) (barChanged bool) {
	if d <= 0 {
		return false
	}
	c.mu.Lock()
	c.denominator = d
	wasInitialized := c.initializedLocked()
	c.denomSeen = true
	changed, bar, beat := c.maybeRecomputeLocked(wasInitialized)
	c.mu.Unlock()
	if changed {
		c.dispatch(bar, beat)
	}
	return changed
}

// SetSongPosition updates the absolute transport position (in quarter-note
// beats, the convention most DAW control buses report) and fires
// subscribers if this moved into a new bar. Before the clock is
// initialized, the position is only cached — no bar/beat compute, no
// subscriber dispatch — per SPEC_FULL.md's "transport-not-initialized"
// handling.
func (c *Clock) SetSongPosition(beats float64) (barChanged bool) {
	c.mu.Lock()
	c.position = beats
	changed, bar, beat := c.recomputeLocked()
	c.mu.Unlock()
	if changed {
		c.dispatch(bar, beat)
	}
	return changed
}

// maybeRecomputeLocked recomputes bar/beat only if the clock was already
// initialized, or this call is the one that just completed
// initialization; otherwise it leaves lastBar untouched and reports no
// change, since the position is merely cached pre-initialization.
func (c *Clock) maybeRecomputeLocked(wasInitialized bool) (changed bool, bar, beat int) {
	if !wasInitialized && !c.initializedLocked() {
		return false, 0, 0
	}
	return c.recomputeLocked()
}

// recomputeLocked must be called with mu held. It returns whether the bar
// changed and the new (bar, beat), updating lastBar as a side effect. If
// the clock is not yet initialized, bar/beat compute is skipped entirely
// and the position stays merely cached.
func (c *Clock) recomputeLocked() (changed bool, bar, beat int) {
	if !c.initializedLocked() {
		return false, 0, 0
	}
	bar, beat = c.barBeatLocked(c.position)
	changed = !c.haveLastBar || bar != c.lastBar
	c.lastBar = bar
	c.haveLastBar = true
	return changed, bar, beat
}

func (c *Clock) dispatch(bar, beat int) {
	c.mu.RLock()
	subs := make([]func(int, int), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.RUnlock()
	for _, fn := range subs {
		fn(bar, beat)
	}
}

// barBeatLocked derives the 1-based (bar, beat) pair from the absolute
// song position using the literal spec formula
// bar = floor(beats/numerator)+1, beat = floor(beats mod numerator)+1 —
// numerator-only; the denominator does not enter bar/beat derivation.
func (c *Clock) barBeatLocked(position float64) (bar, beat int) {
	n := c.numerator
	if n <= 0 {
		n = 4
	}
	nf := float64(n)
	barIdx := int(position / nf)
	bar = barIdx + 1
	beatInBar := position - float64(barIdx)*nf
	beat = int(beatInBar) + 1
	return bar, beat
}

// Vars snapshots the live clock state into the bt/br/tmp/sn/sd values the
// DSL expression grammar evaluates against.
func (c *Clock) Vars() dsl.ClockVars {
	c.mu.RLock()
	defer c.mu.RUnlock()
	beatMs := 60000.0 / c.tempo
	return dsl.ClockVars{
		BeatMs:    beatMs,
		BarMs:     beatMs * float64(c.numerator),
		Tempo:     c.tempo,
		Numerator: float64(c.numerator),
		Denom:     float64(c.denominator),
	}
}

// Snapshot returns the current tempo, time signature, and bar/beat
// position, for outbound "beat" and "tempoAndSignature" client frames.
func (c *Clock) Snapshot() (tempo float64, numerator, denominator, bar, beat int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bar, beat = c.barBeatLocked(c.position)
	return c.tempo, c.numerator, c.denominator, bar, beat
}
