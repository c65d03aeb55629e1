package bytecode

// Kind enumerates the six slots a note exposes. Values are deliberately
// small so they double as opcode operands and corruption-bitmap bit
// indices.
type Kind byte

// The six variable kinds, in the fixed evaluation order Module uses within
// a single note (Tempo, BeatsPerMeasure, MeasureLength, StartTime, Duration,
// Frequency) — that order is not the declaration order below, which instead
// follows the canonical property enumeration.
const (
	StartTime Kind = iota
	Duration
	Frequency
	Tempo
	BeatsPerMeasure
	MeasureLength
	numKinds
)

var kindNames = [numKinds]string{
	StartTime:       "startTime",
	Duration:        "duration",
	Frequency:       "frequency",
	Tempo:           "tempo",
	BeatsPerMeasure: "beatsPerMeasure",
	MeasureLength:   "measureLength",
}

// String returns the canonical (long-form) property name.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "invalid"
}

// Bit returns the single-bit corruption-mask value for k.
func (k Kind) Bit() byte {
	return 1 << byte(k)
}

// Valid reports whether k is one of the six defined kinds.
func (k Kind) Valid() bool {
	return k < numKinds
}

// NumKinds is the number of variable kinds a note exposes.
const NumKinds = int(numKinds)

// Kinds lists all kinds in their canonical (declaration) order.
var Kinds = [NumKinds]Kind{StartTime, Duration, Frequency, Tempo, BeatsPerMeasure, MeasureLength}

// EvalOrder is the fixed per-note evaluation order Module.Evaluate uses so
// that inter-slot references (e.g. MeasureLength depending on Tempo and
// BeatsPerMeasure) are always resolved before they're read.
var EvalOrder = [NumKinds]Kind{Tempo, BeatsPerMeasure, MeasureLength, StartTime, Duration, Frequency}
