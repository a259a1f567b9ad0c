package dsl

// ArpMode is the deterministic selection order over a value array.
type ArpMode int

const (
	ArpNone ArpMode = iota
	ArpUp
	ArpDown
	ArpUpDown
	ArpDownUp
	ArpRandom
)

func parseArpMode(s string) ArpMode {
	switch s {
	case "up":
		return ArpUp
	case "down":
		return ArpDown
	case "up-down":
		return ArpUpDown
	case "down-up":
		return ArpDownUp
	case "random":
		return ArpRandom
	default:
		return ArpNone
	}
}

// ValueKind tags which variant a dynamic per-atom parameter is in, per
// SPEC_FULL.md design note 9: Literal(v) | Random | Array(Vec<Item>) |
// Range(lo,hi).
type ValueKind int

const (
	KindLiteral ValueKind = iota
	KindRandom
	KindArray
	KindRange
)

// NoteItem is one element of a note array, or the resolved value of a
// literal/chord note source. A chord contributes more than one MIDI note
// sounding simultaneously.
type NoteItem struct {
	Notes []uint8
}

// Value is a tagged union over a dynamic atom parameter.
type Value struct {
	Kind ValueKind

	// KindLiteral: a fixed expression (numeric params) ...
	Literal Expr
	// ... or fixed notes (note param only).
	LiteralNotes []uint8

	// KindArray
	Items     []Expr     // numeric arrays (velocity/pan/duration/channel/probability)
	NoteItems []NoteItem // note arrays

	// KindRange: [lo, hi]
	Range [2]float64
}

func literalValue(e Expr) Value { return Value{Kind: KindLiteral, Literal: e} }
func literalNoteValue(notes []uint8) Value {
	return Value{Kind: KindLiteral, LiteralNotes: notes}
}

// NoteAtom is one unit produced from n(...), per SPEC_FULL.md §3.
type NoteAtom struct {
	Note       Value
	Velocity   Value
	Channel    Value
	Duration   Value
	Pan        Value
	MuteProb   Value
	RemoveProb Value

	// HasDuration is true once .d() (outside of its */ weight-modifier
	// form) has set an explicit/randomized/array duration — this (or
	// HasDRange) forces beat-mode auto-override per SPEC_FULL.md §4.4.
	HasDuration bool
	// HasDRange is true once .dRange() was explicitly set.
	HasDRange bool

	NRange  [2]float64
	VRange  [2]float64
	PRange  [2]float64
	PMRange [2]float64
	PRRange [2]float64
	DRange  [2]float64

	NArp  ArpMode
	DArp  ArpMode
	VArp  ArpMode
	PMArp ArpMode
	PRArp ArpMode

	DelayStart *Expr

	Weight    float64
	HasWeight bool

	// RepeatKey identifies the source atom this NoteAtom was expanded
	// from. A "^N" repeat suffix produces N NoteAtoms that all share one
	// RepeatKey so their arpeggiator cursors stay on one shared counter
	// instead of each repeat resolving as an independent first firing.
	RepeatKey int
}

func defaultNoteAtom() NoteAtom {
	return NoteAtom{
		Velocity:   literalValue(ConstExpr(100)),
		Channel:    literalValue(ConstExpr(1)),
		Pan:        literalValue(ConstExpr(64)),
		MuteProb:   literalValue(ConstExpr(0)),
		RemoveProb: literalValue(ConstExpr(0)),
		NRange:     [2]float64{24, 108},
		VRange:     [2]float64{0, 127},
		PRange:     [2]float64{0, 127},
		PMRange:    [2]float64{0, 1},
		PRRange:    [2]float64{0, 1},
		DRange:     [2]float64{1, 8},
		Weight:     1,
	}
}

// AutomationAtom is one a(controller) CC ramp, per SPEC_FULL.md §3.
type AutomationAtom struct {
	Controller int
	From       float64
	To         float64
	Duration   Expr
	Channel    int
	Easing     string
}

// TimingMode is the block-level timing mode.
type TimingMode int

const (
	TimingFit TimingMode = iota
	TimingBeat
	TimingBar
)

// Block is a sequence block (note atoms) or an automation block
// (automation atoms), plus block-level modifiers.
type Block struct {
	Notes       []NoteAtom
	Automations []AutomationAtom

	Timing         TimingMode
	ChannelOverride *Value
	Cutoff          *Expr
	MuteProb        float64
	RemoveProb      float64
}

// Plan is an ordered sequence of Blocks.
type Plan struct {
	Blocks []Block
}

// ProgramKind distinguishes a one-shot track, a named cycle install, or a
// stop directive.
type ProgramKind int

const (
	ProgramTrack ProgramKind = iota
	ProgramCycle
	ProgramStop
)

// Program is the top-level parse result of one submitted string.
type Program struct {
	Kind ProgramKind

	CycleID string

	Tempo       *Expr
	Numerator   *Expr
	Denominator *Expr

	Plan Plan
}
