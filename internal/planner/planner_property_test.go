package planner

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cartomix/barline/internal/dsl"
	"github.com/cartomix/barline/internal/randomizer"
)

var testBarSpan = time.Duration(testCV.BarMs) * time.Millisecond

// Property: Fit invariant — in fit mode with no cutoff, the sum of every
// atom's scheduled duration equals the bar span within a rounding error
// bounded by the atom count.
func TestPropertyFitInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("fit-mode durations sum to the bar span within N ms", prop.ForAll(
		func(weights []int) bool {
			var notes []dsl.NoteAtom
			for _, w := range weights {
				notes = append(notes, withWeight(noteAtom(60), float64(w)))
			}
			block := dsl.Block{Timing: dsl.TimingFit, Notes: notes}
			r := randomizer.New(1)
			res := PlanBlock("prop", block, testCV, r)

			var total time.Duration
			for _, n := range res.Notes {
				total += n.Duration
			}
			diff := total - testBarSpan
			if diff < 0 {
				diff = -diff
			}
			return diff <= time.Duration(len(weights)+1)*time.Millisecond
		},
		gen.SliceOfN(5, gen.IntRange(1, 10)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: Weight monotonicity — doubling one atom's weight doubles its
// share of the bar span (holding the others fixed), up to rounding.
func TestPropertyWeightMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("doubling a weight doubles its fit-mode share", prop.ForAll(
		func(base int) bool {
			w := float64(base)

			block1 := dsl.Block{Timing: dsl.TimingFit, Notes: []dsl.NoteAtom{
				withWeight(noteAtom(60), w),
				withWeight(noteAtom(62), w),
			}}
			res1 := PlanBlock("prop", block1, testCV, randomizer.New(1))

			block2 := dsl.Block{Timing: dsl.TimingFit, Notes: []dsl.NoteAtom{
				withWeight(noteAtom(60), 2*w),
				withWeight(noteAtom(62), w),
			}}
			res2 := PlanBlock("prop", block2, testCV, randomizer.New(1))

			share1 := float64(res1.Notes[0].Duration) / float64(testBarSpan)
			share2 := float64(res2.Notes[0].Duration) / float64(testBarSpan)

			const eps = 0.01
			return share2 > share1 && (share2/share1) > (2-eps) && (share2/share1) < (2+eps)
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
