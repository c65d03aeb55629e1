package bytecode

// Op is a bytecode instruction opcode.
type Op byte

// The expression bytecode instruction set. Operand widths
// are fixed and encoded big-endian: LoadConst takes an int32 numerator and
// an int32 denominator, LoadRef an uint16 note id and a uint8 variable
// index, LoadBase a uint8 variable index; every other opcode takes no
// operands.
const (
	OpLoadConst Op = iota
	OpLoadRef
	OpLoadBase
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpPow
	OpFindTempo
	OpFindMeasure
	OpDup
	OpSwap
	numOps
)

var opNames = [numOps]string{
	OpLoadConst:   "loadconst",
	OpLoadRef:     "loadref",
	OpLoadBase:    "loadbase",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpNeg:         "neg",
	OpPow:         "pow",
	OpFindTempo:   "findtempo",
	OpFindMeasure: "findmeasure",
	OpDup:         "dup",
	OpSwap:        "swap",
}

// String renders the opcode mnemonic used by Disassemble.
func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return "???"
}

// operandSize returns the number of operand bytes following the opcode byte
// itself (0 for operand-less instructions).
func operandSize(op Op) int {
	switch op {
	case OpLoadConst:
		return 8 // int32 num, int32 den
	case OpLoadRef:
		return 3 // uint16 note id, uint8 var
	case OpLoadBase:
		return 1 // uint8 var
	default:
		return 0
	}
}
