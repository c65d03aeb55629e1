package bytecode

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// ErrConstOverflow is returned when a constant's reduced numerator or
// denominator does not fit in the 32-bit wire format.
var ErrConstOverflow = errors.New("bytecode: constant does not fit in 32 bits")

// ErrTruncated is returned by Decode when an instruction's operand bytes run
// past the end of the code stream.
var ErrTruncated = errors.New("bytecode: truncated instruction")

// ErrUnknownOpcode is returned by Decode on a byte outside the defined
// opcode range.
var ErrUnknownOpcode = errors.New("bytecode: unknown opcode")

// Expression is a compiled bytecode program together with the explicit,
// deduplicated set of notes it reads from, and the canonical DSL text it
// was compiled from (for round-tripping through the decompiler).
type Expression struct {
	Code           []byte
	Refs           []uint16 // sorted, deduplicated explicit LoadRef targets
	ReferencesBase bool
	Source         string
}

// Empty is the zero-valued Expression: no instructions, no references. It
// evaluates to rational zero, per spec.
var Empty = Expression{}

// IsEmpty reports whether e carries no instructions.
func (e Expression) IsEmpty() bool { return len(e.Code) == 0 }

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Op     Op
	Num    int32 // OpLoadConst
	Den    int32 // OpLoadConst
	NoteID uint16 // OpLoadRef
	Var    Kind   // OpLoadRef, OpLoadBase
}

// Decode parses a raw instruction stream into a slice of Instruction,
// validating that every instruction's operands fit within the stream and
// that every opcode byte is recognized.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(code) {
		op := Op(code[pos])
		if op >= numOps {
			return nil, errors.Wrapf(ErrUnknownOpcode, "at offset %d: opcode %d", pos, op)
		}
		size := operandSize(op)
		if pos+1+size > len(code) {
			return nil, errors.Wrapf(ErrTruncated, "at offset %d", pos)
		}
		ins := Instruction{Op: op}
		operands := code[pos+1 : pos+1+size]
		switch op {
		case OpLoadConst:
			ins.Num = int32(binary.BigEndian.Uint32(operands[0:4]))
			ins.Den = int32(binary.BigEndian.Uint32(operands[4:8]))
		case OpLoadRef:
			ins.NoteID = binary.BigEndian.Uint16(operands[0:2])
			ins.Var = Kind(operands[2])
		case OpLoadBase:
			ins.Var = Kind(operands[0])
		}
		out = append(out, ins)
		pos += 1 + size
	}
	return out, nil
}

// Builder incrementally assembles an Expression's bytecode, accumulating
// the explicit referenced-note set and the references-base flag as
// instructions are appended. It mirrors the "emit as you parse" style of a
// single-pass assembler rather than building an intermediate AST-shaped IR.
type Builder struct {
	code           []byte
	refs           map[uint16]struct{}
	referencesBase bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{refs: make(map[uint16]struct{})}
}

func put32(code []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(code, b[:]...)
}

// LoadConst appends a LoadConst instruction for the reduced fraction
// num/den. It errors with ErrConstOverflow if either value overflows int32.
func (b *Builder) LoadConst(num, den int64) error {
	if num > int64(^uint32(0)>>1) || num < -int64(^uint32(0)>>1)-1 ||
		den > int64(^uint32(0)>>1) || den < -int64(^uint32(0)>>1)-1 {
		return errors.Wrapf(ErrConstOverflow, "%d/%d", num, den)
	}
	b.code = append(b.code, byte(OpLoadConst))
	b.code = put32(b.code, int32(num))
	b.code = put32(b.code, int32(den))
	return nil
}

// LoadRef appends a LoadRef instruction and records note as an explicit
// dependency (note must not be 0; the base note is recorded via LoadBase
// instead and is never added as a dependency).
func (b *Builder) LoadRef(note uint16, v Kind) {
	b.code = append(b.code, byte(OpLoadRef))
	var nb [2]byte
	binary.BigEndian.PutUint16(nb[:], note)
	b.code = append(b.code, nb[:]...)
	b.code = append(b.code, byte(v))
	b.refs[note] = struct{}{}
}

// LoadBase appends a LoadBase instruction and sets the references-base flag.
func (b *Builder) LoadBase(v Kind) {
	b.code = append(b.code, byte(OpLoadBase), byte(v))
	b.referencesBase = true
}

// Op appends an operand-less instruction (Add, Sub, Mul, Div, Neg, Pow,
// FindTempo, FindMeasure, Dup, Swap).
func (b *Builder) Op(op Op) {
	b.code = append(b.code, byte(op))
}

// AddRef records note as an explicit dependency without emitting any
// instruction. Used when a note id is pushed via LoadConst but must still
// participate in dependency tracking (tempo/measure/beat helper arguments).
func (b *Builder) AddRef(note uint16) {
	b.refs[note] = struct{}{}
}

// MarkReferencesBase records that the expression depends on the base note
// without emitting a LoadBase instruction (used by the same helper-argument
// case as AddRef).
func (b *Builder) MarkReferencesBase() {
	b.referencesBase = true
}

// Build finalizes the Expression, sorting the accumulated reference set.
func (b *Builder) Build(source string) Expression {
	refs := make([]uint16, 0, len(b.refs))
	for n := range b.refs {
		refs = append(refs, n)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return Expression{
		Code:           b.code,
		Refs:           refs,
		ReferencesBase: b.referencesBase,
		Source:         source,
	}
}
