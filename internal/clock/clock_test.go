package clock

import "testing"

func TestNewDefaults(t *testing.T) {
	c := New()
	cv := c.Vars()
	if cv.Tempo != 120 || cv.Numerator != 4 || cv.Denom != 4 {
		t.Fatalf("unexpected default clock vars: %+v", cv)
	}
	if cv.BeatMs != 500 {
		t.Fatalf("expected 500ms beat at 120bpm, got %v", cv.BeatMs)
	}
	if cv.BarMs != 2000 {
		t.Fatalf("expected 2000ms bar at 4/4 120bpm, got %v", cv.BarMs)
	}
}

func TestSetTempoNeverCrossesABar(t *testing.T) {
	c := New()
	initClock(c)
	if c.SetTempo(140) {
		t.Fatalf("tempo changes must never report a bar crossing")
	}
}

func TestSetSongPositionCrossesBars(t *testing.T) {
	c := New() // 4/4 -> bar = floor(beats/numerator)+1
	initClock(c)
	var got []int
	c.Subscribe(func(bar, beat int) { got = append(got, bar) })

	// Initialization itself (completed by initClock, at position 0) already
	// computed and latched bar 1; reset the observed list before exercising
	// further position changes.
	got = nil

	if changed := c.SetSongPosition(2); changed {
		t.Fatalf("position 2 is still bar 1 in 4/4 (floor(2/4)+1=1), should not have crossed")
	}
	if changed := c.SetSongPosition(4); !changed {
		t.Fatalf("position 4 should cross into bar 2 in 4/4 (floor(4/4)+1=2)")
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected one subscriber call reporting bar 2, got %v", got)
	}
}

func TestNonQuarterDenominatorBarMath(t *testing.T) {
	c := New()
	c.SetNumerator(6)
	c.SetDenominator(8)
	c.SetTempo(120)
	var crossed bool
	c.Subscribe(func(bar, beat int) { crossed = true })
	// bar/beat derivation is numerator-only: bar = floor(beats/6)+1,
	// regardless of denominator.
	if !c.SetSongPosition(6) {
		t.Fatalf("position 6 should cross into bar 2 under a 6-numerator signature (floor(6/6)+1=2)")
	}
	if !crossed {
		t.Fatalf("expected subscriber to fire on the bar crossing")
	}
}

func TestInitializationRequiresAllThreeFields(t *testing.T) {
	c := New()
	if c.Initialized() {
		t.Fatalf("a fresh clock must not report initialized before any field is observed")
	}
	c.SetTempo(120)
	if c.Initialized() {
		t.Fatalf("tempo alone must not complete initialization")
	}
	c.SetNumerator(4)
	if c.Initialized() {
		t.Fatalf("tempo+numerator alone must not complete initialization")
	}
	c.SetDenominator(4)
	if !c.Initialized() {
		t.Fatalf("expected Initialized() to report true once tempo, numerator, and denominator have all been observed")
	}
}

func TestPreInitializationSongPositionOnlyCaches(t *testing.T) {
	c := New()
	var fired bool
	c.Subscribe(func(bar, beat int) { fired = true })
	if changed := c.SetSongPosition(10); changed {
		t.Fatalf("a pre-initialization song position must not report a bar change")
	}
	if fired {
		t.Fatalf("a pre-initialization song position must not fire subscribers")
	}
}

func TestInitialBarTransitionAlwaysFires(t *testing.T) {
	c := New()
	var got []int
	c.Subscribe(func(bar, beat int) { got = append(got, bar) })
	c.SetSongPosition(0) // cached pre-initialization, no-op
	c.SetTempo(120)
	c.SetNumerator(4)
	if changed := c.SetDenominator(4); !changed {
		t.Fatalf("completing initialization must report the initial null->bar-1 transition")
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected exactly one subscriber call reporting bar 1, got %v", got)
	}
}

func TestSnapshotReportsLiveState(t *testing.T) {
	c := New()
	initClock(c)
	c.SetTempo(90)
	tempo, num, den, _, _ := c.Snapshot()
	if tempo != 90 || num != 4 || den != 4 {
		t.Fatalf("unexpected snapshot: tempo=%v num=%v den=%v", tempo, num, den)
	}
}

// initClock drives a freshly constructed Clock to the initialized state
// with its default tempo/signature, for tests that only care about
// post-initialization behavior.
func initClock(c *Clock) {
	c.SetTempo(120)
	c.SetNumerator(4)
	c.SetDenominator(4)
}
