// Package randomizer resolves the dsl package's dynamic Value union
// (literal/random/array/range) into concrete numbers and notes at firing
// time, including arpeggiator sequencing state and mute/removal dice.
package randomizer

import (
	"math/rand"
	"sync"

	"github.com/cartomix/barline/internal/dsl"
	"github.com/cartomix/barline/internal/theory"
)

// Resolver holds the PRNG and the per-parameter arpeggiator cursors that
// must persist across firings of the same compiled atom (an ArpUp note
// array walks forward one step every time it fires, not from the start).
type Resolver struct {
	mu       sync.Mutex
	rng      *rand.Rand
	arpState map[string]int
}

// New returns a Resolver seeded from seed. Arp cursors are kept per key,
// so one Resolver can serve many patterns as long as their keys differ
// (the engine shares a single Resolver across every track and cycle).
func New(seed int64) *Resolver {
	return &Resolver{
		rng:      rand.New(rand.NewSource(seed)),
		arpState: make(map[string]int),
	}
}

// ResolveNumeric resolves a velocity/pan/duration/channel/probability
// Value. key must be stable across firings of the same atom's same
// parameter for arp sequencing (e.g. "block0.atom3.velocity").
func (r *Resolver) ResolveNumeric(key string, v dsl.Value, bounds [2]float64, arp dsl.ArpMode, cv dsl.ClockVars) float64 {
	switch v.Kind {
	case dsl.KindLiteral:
		return v.Literal.Eval(cv)
	case dsl.KindRandom:
		return r.uniform(bounds[0], bounds[1])
	case dsl.KindRange:
		return r.uniform(v.Range[0], v.Range[1])
	case dsl.KindArray:
		if len(v.Items) == 0 {
			return 0
		}
		idx := r.nextArpIndex(key, arp, len(v.Items))
		return v.Items[idx].Eval(cv)
	default:
		return 0
	}
}

// ResolveNote resolves a note Value into the set of simultaneous MIDI
// notes it produces this firing (more than one for a chord).
func (r *Resolver) ResolveNote(key string, v dsl.Value, nRange [2]float64) []uint8 {
	return r.resolveNoteArp(key, v, nRange, dsl.ArpNone)
}

// resolveNoteArp is ResolveNote with an explicit arp mode over the note
// array (n() array randomizers can carry their own .nArp()).
func (r *Resolver) resolveNoteArp(key string, v dsl.Value, nRange [2]float64, arp dsl.ArpMode) []uint8 {
	switch v.Kind {
	case dsl.KindLiteral:
		return v.LiteralNotes
	case dsl.KindRandom:
		lo, hi := int(nRange[0]), int(nRange[1])
		if hi < lo {
			lo, hi = hi, lo
		}
		r.mu.Lock()
		n := lo
		if hi > lo {
			n = lo + r.rng.Intn(hi-lo+1)
		}
		r.mu.Unlock()
		return []uint8{theory.ClampMIDI(n)}
	case dsl.KindArray:
		if len(v.NoteItems) == 0 {
			return nil
		}
		idx := r.nextArpIndex(key, arp, len(v.NoteItems))
		return v.NoteItems[idx].Notes
	default:
		return nil
	}
}

// ResolveNoteWithArp resolves a note Value honoring the atom's NArp mode.
func (r *Resolver) ResolveNoteWithArp(key string, v dsl.Value, nRange [2]float64, arp dsl.ArpMode) []uint8 {
	return r.resolveNoteArp(key, v, nRange, arp)
}

// ResolveChannels resolves a channel Value into the full set of MIDI
// channels the atom should fan out across. A literal is one channel; a
// random channel picks one value in [1,16]; an array or range value
// fans the note out across every channel it names rather than picking
// just one, per SPEC_FULL.md §4.5's chord-across-channels behavior.
func (r *Resolver) ResolveChannels(v dsl.Value, cv dsl.ClockVars) []int {
	switch v.Kind {
	case dsl.KindLiteral:
		return []int{int(v.Literal.Eval(cv))}
	case dsl.KindRandom:
		r.mu.Lock()
		ch := 1 + r.rng.Intn(16)
		r.mu.Unlock()
		return []int{ch}
	case dsl.KindArray:
		out := make([]int, 0, len(v.Items))
		for _, e := range v.Items {
			out = append(out, int(e.Eval(cv)))
		}
		return out
	case dsl.KindRange:
		lo, hi := int(v.Range[0]), int(v.Range[1])
		if hi < lo {
			lo, hi = hi, lo
		}
		out := make([]int, 0, hi-lo+1)
		for c := lo; c <= hi; c++ {
			out = append(out, c)
		}
		return out
	default:
		return []int{1}
	}
}

// Bernoulli reports true with probability p (clamped to [0,1]).
func (r *Resolver) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}

// ShouldMute combines an atom-level and block-level mute probability as
// two independent draws: either one firing mutes the note, per
// SPEC_FULL.md §4.5.
func (r *Resolver) ShouldMute(atomProb, blockProb float64) bool {
	return r.Bernoulli(atomProb) || r.Bernoulli(blockProb)
}

// ShouldRemove combines an atom-level and block-level removal probability
// the same way ShouldMute does. Removal is decided before weight
// computation in fit mode (an atom removed by this draw contributes no
// weight and occupies no slot), per the Open Question resolution recorded
// in DESIGN.md.
func (r *Resolver) ShouldRemove(atomProb, blockProb float64) bool {
	return r.Bernoulli(atomProb) || r.Bernoulli(blockProb)
}

func (r *Resolver) uniform(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}

// nextArpIndex advances and returns the next index into an n-length array
// under the given arp mode. ArpNone and ArpRandom both pick uniformly at
// random (no state to carry); the directional modes walk an internal
// cursor keyed by key so consecutive firings never repeat or skip a step,
// satisfying the "arpeggiator seamlessness" property.
func (r *Resolver) nextArpIndex(key string, mode dsl.ArpMode, n int) int {
	if n <= 1 {
		return 0
	}
	if mode == dsl.ArpNone || mode == dsl.ArpRandom {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.rng.Intn(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch mode {
	case dsl.ArpUp:
		idx := r.arpState[key] % n
		r.arpState[key] = idx + 1
		return idx
	case dsl.ArpDown:
		idx := r.arpState[key] % n
		r.arpState[key] = idx + 1
		return n - 1 - idx
	case dsl.ArpUpDown, dsl.ArpDownUp:
		period := 2*n - 2
		if period <= 0 {
			period = 1
		}
		step := r.arpState[key] % period
		r.arpState[key] = step + 1
		pos := step
		if pos >= n {
			pos = period - pos
		}
		if mode == dsl.ArpDownUp {
			pos = n - 1 - pos
		}
		return pos
	default:
		return r.rng.Intn(n)
	}
}
