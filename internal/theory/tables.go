// Package theory implements the static pitch-class/scale/chord tables and
// the pure note-token <-> MIDI number conversions the DSL builds on.
package theory

import "sort"

// pitchClass maps a natural-letter-plus-accidental token to a semitone
// offset from C, the same lookup shape as the teacher's chordRootIndex
// but keyed on note letters rather than whole chord names.
var pitchClass = map[string]int{
	"c": 0, "c#": 1, "db": 1, "d": 2, "d#": 3, "eb": 3, "e": 4,
	"f": 5, "f#": 6, "gb": 6, "g": 7, "g#": 8, "ab": 8,
	"a": 9, "a#": 10, "bb": 10, "b": 11,
}

// Scales maps scale name to its interval vector (semitones from the root,
// one octave, ascending). 30 entries per SPEC_FULL.md's domain-stack
// expansion.
var Scales = map[string][]int{
	"ionian":            {0, 2, 4, 5, 7, 9, 11},
	"dorian":            {0, 2, 3, 5, 7, 9, 10},
	"phrygian":          {0, 1, 3, 5, 7, 8, 10},
	"lydian":            {0, 2, 4, 6, 7, 9, 11},
	"mixolydian":        {0, 2, 4, 5, 7, 9, 10},
	"aeolian":           {0, 2, 3, 5, 7, 8, 10},
	"locrian":           {0, 1, 3, 5, 6, 8, 10},
	"harmonicminor":     {0, 2, 3, 5, 7, 8, 11},
	"melodicminor":      {0, 2, 3, 5, 7, 9, 11},
	"majorpentatonic":   {0, 2, 4, 7, 9},
	"minorpentatonic":   {0, 3, 5, 7, 10},
	"blues":             {0, 3, 5, 6, 7, 10},
	"wholetone":         {0, 2, 4, 6, 8, 10},
	"chromatic":         {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"dorianb2":          {0, 1, 3, 5, 7, 9, 10},
	"lydianaugmented":   {0, 2, 4, 6, 8, 9, 11},
	"lydiandominant":    {0, 2, 4, 6, 7, 9, 10},
	"mixolydianb6":      {0, 2, 4, 5, 7, 8, 10},
	"locriansharp2":     {0, 2, 3, 5, 6, 8, 10},
	"altereddominant":   {0, 1, 3, 4, 6, 8, 10},
	"harmonicmajor":     {0, 2, 4, 5, 7, 8, 11},
	"doubleharmonic":    {0, 1, 4, 5, 7, 8, 11},
	"hungarianminor":    {0, 2, 3, 6, 7, 8, 11},
	"neapolitanminor":   {0, 1, 3, 5, 7, 8, 11},
	"neapolitanmajor":   {0, 1, 3, 5, 7, 9, 11},
	"enigmatic":         {0, 1, 4, 6, 8, 10, 11},
	"hirajoshi":         {0, 2, 3, 7, 8},
	"insen":             {0, 1, 5, 7, 10},
	"yo":                {0, 2, 5, 7, 9},
	"iwato":             {0, 1, 5, 6, 10},
}

// scaleAliases maps a loose scale name to a canonical entry in Scales.
var scaleAliases = map[string]string{
	"major": "ionian",
	"minor": "aeolian",
}

// Chords maps chord quality name to its interval vector. 46 entries.
var Chords = map[string][]int{
	"maj":         {0, 4, 7},
	"min":         {0, 3, 7},
	"dim":         {0, 3, 6},
	"aug":         {0, 4, 8},
	"sus2":        {0, 2, 7},
	"sus4":        {0, 5, 7},
	"maj7":        {0, 4, 7, 11},
	"min7":        {0, 3, 7, 10},
	"dom7":        {0, 4, 7, 10},
	"dim7":        {0, 3, 6, 9},
	"m7b5":        {0, 3, 6, 10},
	"minmaj7":     {0, 3, 7, 11},
	"aug7":        {0, 4, 8, 10},
	"maj7sharp5":  {0, 4, 8, 11},
	"6":           {0, 4, 7, 9},
	"m6":          {0, 3, 7, 9},
	"69":          {0, 2, 4, 7, 9},
	"maj9":        {0, 2, 4, 7, 11},
	"min9":        {0, 2, 3, 7, 10},
	"dom9":        {0, 2, 4, 7, 10},
	"maj11":       {0, 4, 5, 7, 11},
	"min11":       {0, 3, 5, 7, 10},
	"dom11":       {0, 4, 5, 7, 10},
	"maj13":       {0, 4, 7, 9, 11},
	"min13":       {0, 3, 7, 9, 10},
	"dom13":       {0, 4, 7, 9, 10},
	"add9":        {0, 2, 4, 7},
	"addb9":       {0, 1, 4, 7},
	"add11":       {0, 4, 5, 7},
	"add13":       {0, 4, 7, 9},
	"7sus4":       {0, 5, 7, 10},
	"7b9":         {0, 1, 4, 7, 10},
	"7sharp9":     {0, 3, 4, 7, 10},
	"7b5":         {0, 4, 6, 10},
	"7sharp5":     {0, 4, 8, 10},
	"9b5":         {0, 2, 4, 6, 10},
	"9sharp5":     {0, 2, 4, 8, 10},
	"maj7b5":      {0, 4, 6, 11},
	"maj7sharp11": {0, 4, 7, 11, 6},
	"min7b5":      {0, 3, 6, 10},
	"minmaj9":     {0, 2, 3, 7, 11},
	"dim9":        {0, 2, 3, 6, 9},
	"5":           {0, 7},
	"madd9":       {0, 2, 3, 7},
	"mmaj7b5":     {0, 3, 6, 11},
	"7b13":        {0, 4, 7, 8, 10},
}

// ResolveScale returns the interval vector for a scale name, applying the
// major->ionian / minor->aeolian aliases.
func ResolveScale(name string) ([]int, bool) {
	name = normalize(name)
	if canon, ok := scaleAliases[name]; ok {
		name = canon
	}
	iv, ok := Scales[name]
	return iv, ok
}

// ResolveChord returns the interval vector for a chord quality name.
func ResolveChord(name string) ([]int, bool) {
	iv, ok := Chords[normalize(name)]
	return iv, ok
}

func normalize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '-' || c == '_' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// ClampMIDI clamps a semitone value into the valid MIDI note range.
func ClampMIDI(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

// MIDISet returns the MIDI notes for (root, intervals, octave), C4=60.
func MIDISet(rootSemitone, octave int, intervals []int) []uint8 {
	base := 12*(octave+1) + rootSemitone
	out := make([]uint8, len(intervals))
	for i, iv := range intervals {
		out[i] = ClampMIDI(base + iv)
	}
	return out
}

// EnumerateInRange returns every MIDI note in [lo,hi] whose
// (value-rootSemitone) mod 12 is in intervals, deduped and sorted
// ascending. It finds the octave whose root lies nearest lo, then walks
// octave offsets -2..+2 around it. Only those five octaves are walked, so
// notes more than about three octaves above lo are not returned even when
// hi allows them.
func EnumerateInRange(rootSemitone, lo, hi int, intervals []int) []uint8 {
	if lo < 0 {
		lo = 0
	}
	if hi > 127 {
		hi = 127
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	nearestOctave := (lo - rootSemitone) / 12
	seen := map[int]bool{}
	var out []int
	for offset := -2; offset <= 2; offset++ {
		octave := nearestOctave + offset
		base := rootSemitone + 12*octave
		for _, iv := range intervals {
			v := base + iv
			if v < lo || v > hi || v < 0 || v > 127 {
				continue
			}
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)

	result := make([]uint8, len(out))
	for i, v := range out {
		result[i] = uint8(v)
	}
	return result
}
