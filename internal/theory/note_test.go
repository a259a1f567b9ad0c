package theory

import "testing"

func TestParseNoteToken_Literals(t *testing.T) {
	cases := []struct {
		tok  string
		want uint8
	}{
		{"c4", 60}, {"C4", 60}, {"c#3", 49}, {"db3", 49},
		{"a0", 21}, {"60", 60}, {"0", 0}, {"127", 127},
	}
	for _, tc := range cases {
		got, ok := ParseNoteToken(tc.tok)
		if !ok || got != tc.want {
			t.Errorf("ParseNoteToken(%q) = (%d, %v), want %d", tc.tok, got, ok, tc.want)
		}
	}
}

func TestParseNoteToken_Invalid(t *testing.T) {
	for _, tok := range []string{"", "h3", "c", "128", "-1"} {
		if _, ok := ParseNoteToken(tok); ok {
			t.Errorf("ParseNoteToken(%q) should have failed", tok)
		}
	}
}

func TestParseNoteToken_RoundTrip(t *testing.T) {
	for n := 0; n <= 127; n++ {
		tok := CanonicalToken(uint8(n))
		got, ok := ParseNoteToken(tok)
		if !ok || int(got) != n {
			t.Errorf("round trip failed for %d: token=%q got=%d ok=%v", n, tok, got, ok)
		}
	}
}

func TestResolveScale_Aliases(t *testing.T) {
	major, ok := ResolveScale("major")
	if !ok {
		t.Fatal("major should resolve")
	}
	ionian, _ := ResolveScale("ionian")
	if len(major) != len(ionian) {
		t.Errorf("major should alias ionian")
	}

	minor, ok := ResolveScale("minor")
	if !ok {
		t.Fatal("minor should resolve")
	}
	aeolian, _ := ResolveScale("aeolian")
	if len(minor) != len(aeolian) {
		t.Errorf("minor should alias aeolian")
	}
}

func TestEnumerateInRange_Bounds(t *testing.T) {
	root, _ := RootSemitone("c")
	intervals, _ := ResolveScale("major")
	notes := EnumerateInRange(root, 60, 72, intervals)
	if len(notes) == 0 {
		t.Fatal("expected notes in range")
	}
	for _, n := range notes {
		if n < 60 || n > 72 {
			t.Errorf("note %d out of range [60,72]", n)
		}
		offset := ((int(n) - root) % 12 + 12) % 12
		found := false
		for _, iv := range intervals {
			if iv%12 == offset {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("note %d not in scale intervals", n)
		}
	}
}

func TestEnumerateInRange_Deduped(t *testing.T) {
	root, _ := RootSemitone("c")
	intervals, _ := ResolveChord("maj")
	notes := EnumerateInRange(root, 0, 127, intervals)
	seen := map[uint8]bool{}
	for _, n := range notes {
		if seen[n] {
			t.Errorf("duplicate note %d", n)
		}
		seen[n] = true
	}
	for i := 1; i < len(notes); i++ {
		if notes[i] <= notes[i-1] {
			t.Errorf("notes not strictly ascending at %d", i)
		}
	}
}

func TestScaleAndChordTableSizes(t *testing.T) {
	if len(Scales) < 30 {
		t.Errorf("expected at least 30 scales, got %d", len(Scales))
	}
	if len(Chords) < 45 {
		t.Errorf("expected at least 45 chord qualities, got %d", len(Chords))
	}
}
