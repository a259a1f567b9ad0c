package theory

import (
	"strconv"
	"strings"
)

// ParseNoteToken parses a token of the grammar `letter [#|b|#b] octave`
// (e.g. "c#3", "Bb2") into a MIDI number, C4 = 60. Pure numeric input in
// [0,127] passes through unchanged. Octave is clamped after the semitone
// offset is applied, so out-of-range octaves saturate rather than wrap.
func ParseNoteToken(tok string) (uint8, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(tok); err == nil {
		if n < 0 || n > 127 {
			return 0, false
		}
		return uint8(n), true
	}

	lower := strings.ToLower(tok)
	letter := lower[:1]
	if letter < "a" || letter > "g" {
		return 0, false
	}

	i := 1
	accidental := ""
	for i < len(lower) && (lower[i] == '#' || lower[i] == 'b') {
		accidental += string(lower[i])
		i++
	}
	// "#b" is a sharp cancelled by a flat: the natural letter.
	if accidental == "#b" {
		accidental = ""
	}

	if i >= len(lower) {
		return 0, false
	}
	octStr := lower[i:]
	octave, err := strconv.Atoi(octStr)
	if err != nil {
		return 0, false
	}

	semitone, ok := pitchClass[letter+accidental]
	if !ok {
		return 0, false
	}

	return ClampMIDI(12*(octave+1) + semitone), true
}

// RootSemitone returns the pitch class (0-11) of a bare root name such as
// "c", "f#", or "bb" without an octave, used by scale(...)/chord(...).
func RootSemitone(root string) (int, bool) {
	v, ok := pitchClass[strings.ToLower(strings.TrimSpace(root))]
	return v, ok
}

// CanonicalToken renders a MIDI number back to the canonical note-token
// spelling this package prefers (sharps, never flats), used by the
// round-trip testable property in SPEC_FULL.md.
func CanonicalToken(n uint8) string {
	names := []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}
	octave := int(n)/12 - 1
	pc := int(n) % 12
	return names[pc] + strconv.Itoa(octave)
}
