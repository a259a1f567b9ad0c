// Package planner turns one parsed dsl.Block into concrete, timed note
// and automation firings: fit mode divides a span proportionally by
// weight, beat/bar modes lay atoms out sequentially, and an explicit or
// randomized per-atom duration auto-overrides fit into beat mode.
package planner

import (
	"fmt"
	"time"

	"github.com/cartomix/barline/internal/dsl"
	"github.com/cartomix/barline/internal/randomizer"
)

// ScheduledNote is one note (or chord) firing relative to the block's
// start.
type ScheduledNote struct {
	Offset   time.Duration
	Duration time.Duration
	Notes    []uint8
	Velocity uint8
	Pan      uint8
	Channels []uint8
	Muted    bool
}

// ScheduledAutomation is one CC ramp relative to the block's start.
type ScheduledAutomation struct {
	Offset     time.Duration
	Controller int
	From       float64
	To         float64
	Duration   time.Duration
	Channel    uint8
	Easing     string
}

// Result is everything one block produces for one firing.
type Result struct {
	Notes       []ScheduledNote
	Automations []ScheduledAutomation
}

// PlanBlock resolves every atom in block against the live clock variables
// cv, using r for randomization/arpeggiation, and lays out the resulting
// firings in time. key is a stable identifier for this block (e.g.
// "lead.block0") so arpeggiator cursors persist across repeated
// firings of the same compiled block.
func PlanBlock(key string, block dsl.Block, cv dsl.ClockVars, r *randomizer.Resolver) Result {
	mode := effectiveMode(block)
	span := cv.BarMs
	if block.Cutoff != nil {
		span = block.Cutoff.Eval(cv)
	}

	var result Result
	switch mode {
	case dsl.TimingFit:
		result.Notes = planFit(key, block, cv, r, span)
	default:
		unit := cv.BeatMs
		if mode == dsl.TimingBar {
			unit = cv.BarMs
		}
		cutoffMs := -1.0
		if block.Cutoff != nil {
			cutoffMs = span
		}
		result.Notes = planSequential(key, block, cv, r, unit, cutoffMs)
	}

	result.Automations = planAutomations(block, cv)
	return result
}

// effectiveMode applies the auto-override: a block declared fit reverts
// to beat mode the moment any atom asks for an explicit, randomized, or
// array duration (d(), dRange), per SPEC_FULL.md §4.4.
func effectiveMode(block dsl.Block) dsl.TimingMode {
	if block.Timing != dsl.TimingFit {
		return block.Timing
	}
	for _, a := range block.Notes {
		if a.HasDuration || a.HasDRange {
			return dsl.TimingBeat
		}
	}
	return dsl.TimingFit
}

type resolved struct {
	notes    []uint8
	velocity uint8
	pan      uint8
	channels []uint8
	muted    bool
	weight   float64
	delayMs  float64
	hasDur   bool
	durMs    float64
}

func resolveAtom(key string, a dsl.NoteAtom, block dsl.Block, cv dsl.ClockVars, r *randomizer.Resolver) (resolved, bool) {
	atomKey := fmt.Sprintf("%s.%d", key, a.RepeatKey)

	removeP := r.ResolveNumeric(atomKey+".pr", a.RemoveProb, a.PRRange, a.PRArp, cv)
	if r.ShouldRemove(removeP, block.RemoveProb) {
		return resolved{}, false
	}

	notes := r.ResolveNoteWithArp(atomKey+".n", a.Note, a.NRange, a.NArp)
	if len(notes) == 0 {
		return resolved{}, false
	}

	muteP := r.ResolveNumeric(atomKey+".pm", a.MuteProb, a.PMRange, a.PMArp, cv)
	muted := r.ShouldMute(muteP, block.MuteProb)

	velocity := clamp127(r.ResolveNumeric(atomKey+".v", a.Velocity, a.VRange, a.VArp, cv))
	pan := clamp127(r.ResolveNumeric(atomKey+".p", a.Pan, a.PRange, a.PRArp, cv))

	channelValue := a.Channel
	if block.ChannelOverride != nil {
		channelValue = *block.ChannelOverride
	}
	channels := toUint8Channels(r.ResolveChannels(channelValue, cv))

	res := resolved{
		notes:    notes,
		velocity: velocity,
		pan:      pan,
		channels: channels,
		muted:    muted,
		weight:   a.Weight,
	}
	if a.DelayStart != nil {
		res.delayMs = a.DelayStart.Eval(cv)
	}
	if a.HasDuration {
		res.hasDur = true
		res.durMs = r.ResolveNumeric(atomKey+".d", a.Duration, a.DRange, dsl.ArpNone, cv)
	} else if a.HasDRange {
		res.hasDur = true
		res.durMs = r.ResolveNumeric(atomKey+".d", dsl.Value{Kind: dsl.KindRandom}, a.DRange, dsl.ArpNone, cv)
	}
	return res, true
}

func planFit(key string, block dsl.Block, cv dsl.ClockVars, r *randomizer.Resolver, span float64) []ScheduledNote {
	var atoms []resolved
	totalWeight := 0.0
	for _, a := range block.Notes {
		res, ok := resolveAtom(key, a, block, cv, r)
		if !ok {
			continue
		}
		if res.weight <= 0 {
			res.weight = 1
		}
		totalWeight += res.weight
		atoms = append(atoms, res)
	}
	if totalWeight <= 0 || len(atoms) == 0 {
		return nil
	}

	var out []ScheduledNote
	offsetMs := 0.0
	for _, a := range atoms {
		slotMs := span * a.weight / totalWeight
		if slotMs < 1 {
			slotMs = 1
		}
		out = append(out, ScheduledNote{
			Offset:   msToDuration(offsetMs + a.delayMs),
			Duration: msToDuration(slotMs),
			Notes:    a.notes,
			Velocity: a.velocity,
			Pan:      a.pan,
			Channels: a.channels,
			Muted:    a.muted,
		})
		offsetMs += slotMs
	}
	return out
}

func planSequential(key string, block dsl.Block, cv dsl.ClockVars, r *randomizer.Resolver, unitMs, cutoffMs float64) []ScheduledNote {
	var out []ScheduledNote
	offsetMs := 0.0
	for _, a := range block.Notes {
		res, ok := resolveAtom(key, a, block, cv, r)
		if !ok {
			continue
		}
		durMs := unitMs
		if res.hasDur {
			durMs = res.durMs
		}

		start := offsetMs + res.delayMs
		if cutoffMs >= 0 && start >= cutoffMs {
			break
		}
		out = append(out, ScheduledNote{
			Offset:   msToDuration(start),
			Duration: msToDuration(durMs),
			Notes:    res.notes,
			Velocity: res.velocity,
			Pan:      res.pan,
			Channels: res.channels,
			Muted:    res.muted,
		})
		offsetMs += durMs
	}
	return out
}

func planAutomations(block dsl.Block, cv dsl.ClockVars) []ScheduledAutomation {
	var out []ScheduledAutomation
	for _, a := range block.Automations {
		durMs := a.Duration.Eval(cv)
		if durMs <= 0 {
			durMs = cv.BarMs
		}
		out = append(out, ScheduledAutomation{
			Controller: a.Controller,
			From:       a.From,
			To:         a.To,
			Duration:   msToDuration(durMs),
			Channel:    uint8(a.Channel),
			Easing:     a.Easing,
		})
	}
	return out
}

func clamp127(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func toUint8Channels(chans []int) []uint8 {
	out := make([]uint8, 0, len(chans))
	for _, c := range chans {
		if c < 1 {
			c = 1
		}
		if c > 16 {
			c = 16
		}
		out = append(out, uint8(c))
	}
	if len(out) == 0 {
		out = append(out, 1)
	}
	return out
}

func msToDuration(ms float64) time.Duration {
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
