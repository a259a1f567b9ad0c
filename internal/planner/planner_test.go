package planner

import (
	"testing"
	"time"

	"github.com/cartomix/barline/internal/dsl"
	"github.com/cartomix/barline/internal/randomizer"
)

var testCV = dsl.ClockVars{BeatMs: 500, BarMs: 2000, Tempo: 120, Numerator: 4, Denom: 4}

func noteAtom(n uint8) dsl.NoteAtom {
	return dsl.NoteAtom{
		Note:     dsl.Value{Kind: dsl.KindLiteral, LiteralNotes: []uint8{n}},
		Velocity: dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(100)},
		Pan:      dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(64)},
		Channel:  dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(1)},
		MuteProb: dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(0)},
		RemoveProb: dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(0)},
		Weight:   1,
	}
}

func TestFitModeSplitsSpanProportionallyByWeight(t *testing.T) {
	block := dsl.Block{
		Timing: dsl.TimingFit,
		Notes: []dsl.NoteAtom{
			withWeight(noteAtom(60), 1),
			withWeight(noteAtom(62), 3),
		},
	}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes) != 2 {
		t.Fatalf("expected 2 scheduled notes, got %d", len(res.Notes))
	}
	// total weight 4 over a 2000ms bar: first gets 500ms, second gets 1500ms.
	if res.Notes[0].Duration != 500*time.Millisecond {
		t.Fatalf("expected first note's fit-mode slot to be 500ms, got %v", res.Notes[0].Duration)
	}
	if res.Notes[1].Duration != 1500*time.Millisecond {
		t.Fatalf("expected second note's fit-mode slot to be 1500ms, got %v", res.Notes[1].Duration)
	}
	if res.Notes[1].Offset != 500*time.Millisecond {
		t.Fatalf("expected the second note to start right after the first's slot, got %v", res.Notes[1].Offset)
	}
}

func withWeight(a dsl.NoteAtom, w float64) dsl.NoteAtom {
	a.Weight = w
	a.HasWeight = true
	return a
}

func TestExplicitDurationOverridesFitToBeatMode(t *testing.T) {
	a := noteAtom(60)
	a.HasDuration = true
	a.Duration = dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(750)}
	block := dsl.Block{Timing: dsl.TimingFit, Notes: []dsl.NoteAtom{a, noteAtom(62)}}

	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	// beat mode: first note's explicit duration 750ms, second falls back to
	// the beat unit (500ms) and starts right after the first.
	if res.Notes[0].Duration != 750*time.Millisecond {
		t.Fatalf("expected explicit duration 750ms to survive the override, got %v", res.Notes[0].Duration)
	}
	if res.Notes[1].Offset != 750*time.Millisecond {
		t.Fatalf("expected beat-mode sequencing to start the second note after the first's actual duration, got %v", res.Notes[1].Offset)
	}
}

func TestBeatModeSequentialPlacement(t *testing.T) {
	block := dsl.Block{Timing: dsl.TimingBeat, Notes: []dsl.NoteAtom{noteAtom(60), noteAtom(62), noteAtom(64)}}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	for i, n := range res.Notes {
		want := time.Duration(i) * 500 * time.Millisecond
		if n.Offset != want {
			t.Fatalf("note %d: expected offset %v, got %v", i, want, n.Offset)
		}
		if n.Duration != 500*time.Millisecond {
			t.Fatalf("note %d: expected the default beat duration, got %v", i, n.Duration)
		}
	}
}

func TestCutoffTruncatesSequentialPlacement(t *testing.T) {
	cutoff := dsl.ConstExpr(900)
	block := dsl.Block{
		Timing: dsl.TimingBeat,
		Notes:  []dsl.NoteAtom{noteAtom(60), noteAtom(62), noteAtom(64)},
		Cutoff: &cutoff,
	}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes) != 2 {
		t.Fatalf("expected the cutoff at 900ms to admit only the first 2 notes (0ms, 500ms), got %d", len(res.Notes))
	}
}

func TestMutedNoteOccupiesSlotButIsMarkedMuted(t *testing.T) {
	a := noteAtom(60)
	a.MuteProb = dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(1)}
	block := dsl.Block{Timing: dsl.TimingBeat, Notes: []dsl.NoteAtom{a, noteAtom(62)}}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes) != 2 {
		t.Fatalf("expected a muted note to still occupy a timing slot, got %d scheduled notes", len(res.Notes))
	}
	if !res.Notes[0].Muted {
		t.Fatalf("expected the first note to be muted")
	}
	if res.Notes[1].Offset != 500*time.Millisecond {
		t.Fatalf("expected the muted note's slot to still push the next note's offset, got %v", res.Notes[1].Offset)
	}
}

func TestRemovedAtomContributesNoWeightInFitMode(t *testing.T) {
	a := noteAtom(60)
	a.RemoveProb = dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(1)}
	block := dsl.Block{Timing: dsl.TimingFit, Notes: []dsl.NoteAtom{a, withWeight(noteAtom(62), 1)}}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes) != 1 {
		t.Fatalf("expected the removed atom to vanish entirely (no slot, no weight), got %d notes", len(res.Notes))
	}
	if res.Notes[0].Duration != 2000*time.Millisecond {
		t.Fatalf("expected the surviving note to claim the full bar span, got %v", res.Notes[0].Duration)
	}
}

func TestChannelArrayFansOutAcrossMultipleChannels(t *testing.T) {
	a := noteAtom(60)
	a.Channel = dsl.Value{Kind: dsl.KindArray, Items: []dsl.Expr{dsl.ConstExpr(1), dsl.ConstExpr(2), dsl.ConstExpr(3)}}
	block := dsl.Block{Timing: dsl.TimingBeat, Notes: []dsl.NoteAtom{a}}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes[0].Channels) != 3 {
		t.Fatalf("expected the note to fan out across 3 channels, got %v", res.Notes[0].Channels)
	}
}

func TestBlockLevelChannelOverrideWinsOverAtom(t *testing.T) {
	a := noteAtom(60)
	a.Channel = dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(1)}
	override := dsl.Value{Kind: dsl.KindLiteral, Literal: dsl.ConstExpr(9)}
	block := dsl.Block{Timing: dsl.TimingBeat, Notes: []dsl.NoteAtom{a}, ChannelOverride: &override}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes[0].Channels) != 1 || res.Notes[0].Channels[0] != 9 {
		t.Fatalf("expected the block-level channel override to win, got %v", res.Notes[0].Channels)
	}
}

func TestBarModeUsesBarDuration(t *testing.T) {
	block := dsl.Block{Timing: dsl.TimingBar, Notes: []dsl.NoteAtom{noteAtom(60), noteAtom(62)}}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if res.Notes[1].Offset != 2000*time.Millisecond {
		t.Fatalf("expected bar-mode atoms to be spaced a full bar apart, got %v", res.Notes[1].Offset)
	}
}

func TestArpeggiatorSeamlessAcrossOneAtomsRepeats(t *testing.T) {
	plan := dsl.ParsePlan("[n(r.o{c4,e4,g4})^8.nArp(up-down)].c(1)")
	block := plan.Blocks[0]
	if len(block.Notes) != 8 {
		t.Fatalf("expected 8 repeated atoms, got %d", len(block.Notes))
	}

	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Notes) != 8 {
		t.Fatalf("expected 8 scheduled notes, got %d", len(res.Notes))
	}

	want := []uint8{60, 64, 67, 64, 60, 64, 67, 64}
	for i, n := range res.Notes {
		if len(n.Notes) != 1 || n.Notes[0] != want[i] {
			t.Fatalf("note %d: expected %d, got %v (full sequence: %v)", i, want[i], n.Notes, res.Notes)
		}
	}
}

func TestAutomationDefaultsToFullBarWhenNoDurationGiven(t *testing.T) {
	block := dsl.Block{
		Automations: []dsl.AutomationAtom{{Controller: 74, From: 0, To: 127, Channel: 1, Easing: "linear"}},
	}
	r := randomizer.New(1)
	res := PlanBlock("test", block, testCV, r)
	if len(res.Automations) != 1 {
		t.Fatalf("expected 1 scheduled automation, got %d", len(res.Automations))
	}
	if res.Automations[0].Duration != 2000*time.Millisecond {
		t.Fatalf("expected an automation with no duration to default to a full bar, got %v", res.Automations[0].Duration)
	}
}
