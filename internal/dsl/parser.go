package dsl

import (
	"strconv"
	"strings"

	"github.com/cartomix/barline/internal/theory"
)

// Parse turns one submitted program string into a Program. Parsing never
// fails outright: an unrecognized construct is dropped per the atom or
// block it lives in, and a program with nothing left parseable comes back
// as an empty-plan track (a no-op), matching SPEC_FULL.md §4.3's fail-soft
// contract.
func Parse(input string) *Program {
	s := collapseWhitespace(input)

	if strings.HasPrefix(s, "t(") {
		if args, end, ok := extractCall(s, "t", 0); ok {
			return parseCycleProgram(strings.TrimSpace(args), s[end:])
		}
	}

	return &Program{Kind: ProgramTrack, Plan: ParsePlan(s)}
}

// parseCycleProgram handles everything that starts with "t(id)": a stop
// directive, a cycle install/update via .play(...), or (if neither .stop
// nor .play appears) a no-op.
func parseCycleProgram(id, rest string) *Program {
	dots, _ := parseDotChain(rest)

	prog := &Program{CycleID: id}
	var playArgs string
	havePlay := false

	for _, d := range dots {
		switch d.name {
		case "stop":
			prog.Kind = ProgramStop
		case "bpm":
			if e, ok := ParseExpr(d.args); ok {
				prog.Tempo = &e
			}
		case "sn":
			if e, ok := ParseExpr(d.args); ok {
				prog.Numerator = &e
			}
		case "sd":
			if e, ok := ParseExpr(d.args); ok {
				prog.Denominator = &e
			}
		case "play":
			playArgs = d.args
			havePlay = true
		}
	}

	if prog.Kind == ProgramStop {
		return prog
	}
	if havePlay {
		prog.Kind = ProgramCycle
		prog.Plan = ParsePlan(playArgs)
		return prog
	}
	return &Program{Kind: ProgramTrack}
}

// ParsePlan parses a sequence of top-level "[...]" blocks (each optionally
// followed by a block-level dot-chain) into a Plan.
func ParsePlan(s string) Plan {
	s = collapseWhitespace(s)

	var blocks []Block
	i := 0
	for i < len(s) {
		if s[i] != '[' {
			i++
			continue
		}
		close := matchBalanced(s, i, '[', ']')
		if close == -1 {
			break
		}
		inner := s[i+1 : close-1]
		dots, consumed := parseDotChain(s[close:])
		blocks = append(blocks, buildBlock(inner, dots))
		i = close + consumed
	}
	return Plan{Blocks: blocks}
}

// buildBlock parses one block's atom list plus its block-level modifiers
// (.t, .c, .co, .pm).
func buildBlock(inner string, dots []dotCall) Block {
	block := Block{Timing: TimingBeat}

	for _, d := range dots {
		switch d.name {
		case "t":
			switch strings.TrimSpace(d.args) {
			case "fit":
				block.Timing = TimingFit
			case "beat":
				block.Timing = TimingBeat
			case "bar":
				block.Timing = TimingBar
			}
		case "c":
			v := parseNumericOrArrayValue(d.args)
			block.ChannelOverride = &v
		case "co":
			if e, ok := ParseExpr(d.args); ok {
				block.Cutoff = &e
			}
		case "pm":
			if f, err := strconv.ParseFloat(strings.TrimSpace(d.args), 64); err == nil {
				block.MuteProb = f
			}
		}
	}

	defaults := defaultNoteAtom()
	srcIdx := 0
	for _, tok := range splitAtoms(inner) {
		switch {
		case strings.HasPrefix(tok, "n("):
			block.Notes = append(block.Notes, parseNoteAtomToken(tok, defaults, srcIdx)...)
			srcIdx++
		case strings.HasPrefix(tok, "a("):
			if a, ok := parseAutomationToken(tok); ok {
				block.Automations = append(block.Automations, a)
			}
		case strings.HasPrefix(tok, "scale(") || strings.HasPrefix(tok, "chord("):
			block.Notes = append(block.Notes, expandStandaloneToken(tok, defaults, srcIdx)...)
			srcIdx++
		}
		// anything else (stray text, malformed atoms) is silently dropped.
	}
	return block
}

// rawNoteSource is the not-yet-range-resolved content of an n(...) call.
type rawNoteSource struct {
	kind       string // "literal", "random", "array"
	literalTok string
	arrayToks  []string
}

func parseRawNoteSource(argsStr string) rawNoteSource {
	argsStr = strings.TrimSpace(argsStr)
	if argsStr == "r" {
		return rawNoteSource{kind: "random"}
	}
	if strings.HasPrefix(argsStr, "r.o{") && strings.HasSuffix(argsStr, "}") {
		inner := argsStr[len("r.o{") : len(argsStr)-1]
		return rawNoteSource{kind: "array", arrayToks: splitTopLevel(inner, ',')}
	}
	return rawNoteSource{kind: "literal", literalTok: argsStr}
}

// resolveNoteSourceFinal resolves a rawNoteSource into a Value once the
// atom's final nRange is known (dRange/nRange dotted-mods are applied
// before this is called, so r.o{scale(...)} templates enumerate correctly
// per SPEC_FULL.md §4.3 expansion step (ii)).
func resolveNoteSourceFinal(raw rawNoteSource, nRange [2]float64) (Value, bool) {
	switch raw.kind {
	case "random":
		return Value{Kind: KindRandom}, true
	case "array":
		var items []NoteItem
		for _, t := range raw.arrayToks {
			items = append(items, resolveArrayItem(t, nRange)...)
		}
		if len(items) == 0 {
			return Value{}, false
		}
		return Value{Kind: KindArray, NoteItems: items}, true
	default:
		notes, ok := resolveLiteralNoteToken(raw.literalTok)
		if !ok {
			return Value{}, false
		}
		return literalNoteValue(notes), true
	}
}

// resolveArrayItem expands one item of an r.o{...} array. A "<...>" item
// is a chord literal (notes sound together); a bare scale(...)/chord(...)
// item is a template enumerated against nRange into many single-note
// choices; anything else is a single literal note token.
func resolveArrayItem(raw string, nRange [2]float64) []NoteItem {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">"):
		notes, ok := resolveAngleContent(raw[1 : len(raw)-1])
		if !ok {
			return nil
		}
		return []NoteItem{{Notes: notes}}
	case strings.HasPrefix(raw, "scale(") || strings.HasPrefix(raw, "chord("):
		root, intervals, ok := parseScaleOrChordTemplate(raw)
		if !ok {
			return nil
		}
		notes := theory.EnumerateInRange(root, int(nRange[0]), int(nRange[1]), intervals)
		items := make([]NoteItem, len(notes))
		for i, n := range notes {
			items[i] = NoteItem{Notes: []uint8{n}}
		}
		return items
	default:
		n, ok := theory.ParseNoteToken(raw)
		if !ok {
			return nil
		}
		return []NoteItem{{Notes: []uint8{n}}}
	}
}

func resolveLiteralNoteToken(tok string) ([]uint8, bool) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		return resolveAngleContent(tok[1 : len(tok)-1])
	}
	n, ok := theory.ParseNoteToken(tok)
	if !ok {
		return nil, false
	}
	return []uint8{n}, true
}

// resolveAngleContent resolves the content of a "<...>" chord literal:
// chord(root-quality), scale(root-name).q(quality), or a comma list of
// plain note tokens.
func resolveAngleContent(inner string) ([]uint8, bool) {
	inner = strings.TrimSpace(inner)
	switch {
	case strings.HasPrefix(inner, "chord("):
		root, intervals, ok := parseChordCallArgsFrom(inner)
		if !ok {
			return nil, false
		}
		return theory.MIDISet(root, 4, intervals), true
	case strings.HasPrefix(inner, "scale("):
		args, end, ok := extractCall(inner, "scale", 0)
		if !ok {
			return nil, false
		}
		root, intervals, ok2 := parseScaleCallArgs(args)
		if !ok2 {
			return nil, false
		}
		dots, _ := parseDotChain(inner[end:])
		for _, d := range dots {
			if d.name == "q" {
				if qi, ok3 := theory.ResolveChord(strings.TrimSpace(d.args)); ok3 {
					intervals = qi
				}
			}
		}
		return theory.MIDISet(root, 4, intervals), true
	default:
		var notes []uint8
		for _, p := range strings.Split(inner, ",") {
			if n, ok := theory.ParseNoteToken(strings.TrimSpace(p)); ok {
				notes = append(notes, n)
			}
		}
		if len(notes) == 0 {
			return nil, false
		}
		return notes, true
	}
}

// splitRootName splits a "root-name" argument (e.g. "c#-maj9") into its
// root token and remainder, trying a two-character root (sharp/flat)
// before a one-character root.
func splitRootName(args string) (rootStr, name string, ok bool) {
	args = strings.TrimSpace(args)
	if len(args) >= 3 {
		two := strings.ToLower(args[:2])
		if _, ok := theory.RootSemitone(two); ok && args[2] == '-' {
			return two, args[3:], true
		}
	}
	if len(args) >= 2 {
		one := strings.ToLower(args[:1])
		if _, ok := theory.RootSemitone(one); ok && args[1] == '-' {
			return one, args[2:], true
		}
	}
	return "", "", false
}

func parseChordCallArgs(args string) (root int, intervals []int, ok bool) {
	rootStr, name, ok := splitRootName(args)
	if !ok {
		return 0, nil, false
	}
	root, ok = theory.RootSemitone(rootStr)
	if !ok {
		return 0, nil, false
	}
	intervals, ok = theory.ResolveChord(name)
	return root, intervals, ok
}

func parseScaleCallArgs(args string) (root int, intervals []int, ok bool) {
	rootStr, name, ok := splitRootName(args)
	if !ok {
		return 0, nil, false
	}
	root, ok = theory.RootSemitone(rootStr)
	if !ok {
		return 0, nil, false
	}
	intervals, ok = theory.ResolveScale(name)
	return root, intervals, ok
}

func parseChordCallArgsFrom(s string) (root int, intervals []int, ok bool) {
	args, _, found := extractCall(s, "chord", 0)
	if !found {
		return 0, nil, false
	}
	return parseChordCallArgs(args)
}

// parseScaleOrChordTemplate parses a bare "scale(root-name)" or
// "chord(root-quality)" template (used inside r.o{...}), with an optional
// trailing ".q(quality)" on a scale template.
func parseScaleOrChordTemplate(s string) (root int, intervals []int, ok bool) {
	if strings.HasPrefix(s, "chord(") {
		return parseChordCallArgsFrom(s)
	}
	args, end, found := extractCall(s, "scale", 0)
	if !found {
		return 0, nil, false
	}
	root, intervals, ok = parseScaleCallArgs(args)
	if !ok {
		return 0, nil, false
	}
	dots, _ := parseDotChain(s[end:])
	for _, d := range dots {
		if d.name == "q" {
			if qi, ok2 := theory.ResolveChord(strings.TrimSpace(d.args)); ok2 {
				intervals = qi
			}
		}
	}
	return root, intervals, true
}

// expandStandaloneToken expands a bare scale(...)/chord(...) atom (not
// wrapped in n(...)) into one NoteAtom per resulting MIDI note, at a fixed
// default octave, per SPEC_FULL.md §4.3 expansion step (iii).
func expandStandaloneToken(tok string, defaults NoteAtom, srcIdx int) []NoteAtom {
	root, intervals, ok := parseScaleOrChordTemplate(tok)
	if !ok {
		return nil
	}
	notes := theory.MIDISet(root, 4, intervals)
	atoms := make([]NoteAtom, len(notes))
	for i, n := range notes {
		a := defaults
		a.Note = literalNoteValue([]uint8{n})
		a.RepeatKey = srcIdx
		atoms[i] = a
	}
	return atoms
}

// parseNoteAtomToken parses one "n(...)" atom token, including its
// trailing "^N" repeat and dotted-modifier chain, into zero or more
// NoteAtoms (zero if the note source could not be resolved at all).
func parseNoteAtomToken(tok string, defaults NoteAtom, srcIdx int) []NoteAtom {
	close := matchBalanced(tok, 1, '(', ')')
	if close == -1 {
		return nil
	}
	argsStr := tok[2 : close-1]
	rest := tok[close:]

	repeat := 1
	if strings.HasPrefix(rest, "^") {
		j := 1
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if n, err := strconv.Atoi(rest[1:j]); err == nil && n > 0 {
			repeat = n
		}
		rest = rest[j:]
	}

	atom := defaults
	dots, _ := parseDotChain(rest)
	for _, d := range dots {
		applyDotMod(&atom, d)
	}

	raw := parseRawNoteSource(argsStr)
	note, ok := resolveNoteSourceFinal(raw, atom.NRange)
	if !ok {
		return nil
	}
	atom.Note = note

	atom.RepeatKey = srcIdx
	atoms := make([]NoteAtom, repeat)
	for i := range atoms {
		atoms[i] = atom
	}
	return atoms
}

// applyDotMod applies one parsed dotted modifier to a NoteAtom in
// progress. Unrecognized modifier names are ignored.
func applyDotMod(atom *NoteAtom, d dotCall) {
	switch d.name {
	case "v":
		atom.Velocity = parseNumericOrArrayValue(d.args)
	case "p":
		atom.Pan = parseNumericOrArrayValue(d.args)
	case "c":
		atom.Channel = parseNumericOrArrayValue(d.args)
	case "pm":
		atom.MuteProb = parseNumericOrArrayValue(d.args)
	case "pr":
		atom.RemoveProb = parseNumericOrArrayValue(d.args)
	case "d":
		applyDurationOrWeight(atom, strings.TrimSpace(d.args))
	case "ds":
		if e, ok := ParseExpr(d.args); ok {
			atom.DelayStart = &e
		}
	case "nArp":
		atom.NArp = parseArpMode(strings.TrimSpace(d.args))
	case "dArp":
		atom.DArp = parseArpMode(strings.TrimSpace(d.args))
	case "vArp":
		atom.VArp = parseArpMode(strings.TrimSpace(d.args))
	case "pmArp":
		atom.PMArp = parseArpMode(strings.TrimSpace(d.args))
	case "prArp":
		atom.PRArp = parseArpMode(strings.TrimSpace(d.args))
	case "nRange":
		atom.NRange = parseRangePair(d.args, atom.NRange)
	case "vRange":
		atom.VRange = parseRangePair(d.args, atom.VRange)
	case "pRange":
		atom.PRange = parseRangePair(d.args, atom.PRange)
	case "dRange":
		atom.DRange = parseRangePair(d.args, atom.DRange)
		atom.HasDRange = true
	case "pmRange":
		atom.PMRange = parseRangePair(d.args, atom.PMRange)
	case "prRange":
		atom.PRRange = parseRangePair(d.args, atom.PRRange)
	}
}

// applyDurationOrWeight implements .d()'s dual role: a leading "*f" or
// "/f" sets the block-fit weight multiplier (spec §4.4's "d(*f)"/"d(/f)");
// anything else is a duration source and forces the beat-mode
// auto-override (HasDuration).
func applyDurationOrWeight(atom *NoteAtom, args string) {
	switch {
	case strings.HasPrefix(args, "*"):
		if f, err := strconv.ParseFloat(strings.TrimSpace(args[1:]), 64); err == nil && f > 0 {
			atom.Weight = f
			atom.HasWeight = true
		}
	case strings.HasPrefix(args, "/"):
		if f, err := strconv.ParseFloat(strings.TrimSpace(args[1:]), 64); err == nil && f > 0 {
			atom.Weight = 1 / f
			atom.HasWeight = true
		}
	default:
		atom.Duration = parseNumericOrArrayValue(args)
		atom.HasDuration = true
	}
}

// parseRangePair parses "lo,hi" into a [2]float64, falling back to the
// previous value on any parse failure.
func parseRangePair(args string, fallback [2]float64) [2]float64 {
	parts := splitTopLevel(args, ',')
	if len(parts) != 2 {
		return fallback
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return fallback
	}
	return [2]float64{lo, hi}
}

// parseNumericOrArrayValue parses a numeric dotted-modifier argument:
// "r" (random), "<a,b,c>" or "a,b,c" (array), or a single expression
// (literal, possibly bt/br/tmp/sn/sd-based).
func parseNumericOrArrayValue(args string) Value {
	args = strings.TrimSpace(args)
	if args == "r" {
		return Value{Kind: KindRandom}
	}
	inner := args
	if strings.HasPrefix(inner, "<") && strings.HasSuffix(inner, ">") {
		inner = inner[1 : len(inner)-1]
	}
	parts := splitTopLevel(inner, ',')
	if len(parts) > 1 {
		var items []Expr
		for _, p := range parts {
			if e, ok := ParseExpr(strings.TrimSpace(p)); ok {
				items = append(items, e)
			}
		}
		return Value{Kind: KindArray, Items: items}
	}
	if e, ok := ParseExpr(strings.TrimSpace(args)); ok {
		return literalValue(e)
	}
	return literalValue(ConstExpr(0))
}

// parseAutomationToken parses one "a(cc).from(v).to(v).d(expr).e(name).c(ch)"
// automation atom.
func parseAutomationToken(tok string) (AutomationAtom, bool) {
	close := matchBalanced(tok, 1, '(', ')')
	if close == -1 {
		return AutomationAtom{}, false
	}
	argsStr := strings.TrimSpace(tok[2 : close-1])
	cc, err := strconv.Atoi(argsStr)
	if err != nil {
		return AutomationAtom{}, false
	}

	atom := AutomationAtom{Controller: cc, Channel: 1, Easing: "linear"}
	dots, _ := parseDotChain(tok[close:])
	for _, d := range dots {
		switch d.name {
		case "from":
			if f, err := strconv.ParseFloat(strings.TrimSpace(d.args), 64); err == nil {
				atom.From = f
			}
		case "to":
			if f, err := strconv.ParseFloat(strings.TrimSpace(d.args), 64); err == nil {
				atom.To = f
			}
		case "d":
			if e, ok := ParseExpr(d.args); ok {
				atom.Duration = e
			}
		case "e":
			atom.Easing = strings.TrimSpace(d.args)
		case "c":
			if n, err := strconv.Atoi(strings.TrimSpace(d.args)); err == nil {
				atom.Channel = n
			}
		}
	}
	return atom, true
}
