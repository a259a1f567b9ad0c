package transport

import (
	"testing"

	"github.com/cartomix/barline/internal/clock"
	"github.com/hypebeast/go-osc/osc"
)

func TestFirstFloatAcceptsNumericArgumentTypes(t *testing.T) {
	cases := []struct {
		name string
		args []interface{}
		want float64
		ok   bool
	}{
		{"float32", []interface{}{float32(1.5)}, 1.5, true},
		{"float64", []interface{}{float64(2.5)}, 2.5, true},
		{"int32", []interface{}{int32(3)}, 3, true},
		{"int64", []interface{}{int64(4)}, 4, true},
		{"empty", nil, 0, false},
		{"string", []interface{}{"nope"}, 0, false},
	}
	for _, c := range cases {
		msg := osc.NewMessage("/x")
		for _, a := range c.args {
			msg.Append(a)
		}
		got, ok := firstFloat(msg)
		if ok != c.ok {
			t.Fatalf("%s: expected ok=%v, got %v", c.name, c.ok, ok)
		}
		if ok && got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestHandleTempoUpdatesClockAndNotifies(t *testing.T) {
	c := clock.New()
	s := New(nil, c, 0, "127.0.0.1", 0)
	var notified bool
	s.OnChange = func() { notified = true }

	msg := osc.NewMessage("/tempo")
	msg.Append(float32(140))
	s.handleTempo(msg)

	tempo, _, _, _, _ := c.Snapshot()
	if tempo != 140 {
		t.Fatalf("expected tempo to update to 140, got %v", tempo)
	}
	if !notified {
		t.Fatalf("expected OnChange to fire after a tempo update")
	}
}

func TestHandleSongTimeUpdatesPosition(t *testing.T) {
	c := clock.New()
	s := New(nil, c, 0, "127.0.0.1", 0)

	tempoMsg := osc.NewMessage("/tempo")
	tempoMsg.Append(float32(120))
	s.handleTempo(tempoMsg)
	numMsg := osc.NewMessage("/signature_numerator")
	numMsg.Append(float32(4))
	s.handleNumerator(numMsg)
	denMsg := osc.NewMessage("/signature_denominator")
	denMsg.Append(float32(4))
	s.handleDenominator(denMsg)

	var bars []int
	c.Subscribe(func(bar, beat int) { bars = append(bars, bar) })

	msg := osc.NewMessage("/current_song_time")
	msg.Append(float32(4))
	s.handleSongTime(msg)

	if len(bars) != 1 || bars[0] != 2 {
		t.Fatalf("expected the song-time update to cross into bar 2 (floor(4/4)+1=2), got %v", bars)
	}
}

func TestSongTimeBeforeInitializationOnlyCaches(t *testing.T) {
	c := clock.New()
	s := New(nil, c, 0, "127.0.0.1", 0)
	var bars []int
	c.Subscribe(func(bar, beat int) { bars = append(bars, bar) })

	msg := osc.NewMessage("/current_song_time")
	msg.Append(float32(4))
	s.handleSongTime(msg)

	if len(bars) != 0 {
		t.Fatalf("expected a pre-initialization song-time update not to fire any bar crossing, got %v", bars)
	}
	if c.Initialized() {
		t.Fatalf("clock should still not be initialized without tempo/numerator/denominator")
	}
}
