package bytecode

import "fmt"

// Disassemble renders e's raw instruction stream as a human-readable
// listing, one mnemonic (plus operands) per line. It is a debugging aid
// distinct from the DSL decompiler in package compile: Disassemble shows
// the opcode stream as-is, while the decompiler reconstructs DSL source.
func Disassemble(e Expression) (string, error) {
	ins, err := Decode(e.Code)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, 16*len(ins))
	for _, in := range ins {
		switch in.Op {
		case OpLoadConst:
			out = appendf(out, "loadconst %d/%d\n", in.Num, in.Den)
		case OpLoadRef:
			out = appendf(out, "loadref [%d].%s\n", in.NoteID, in.Var)
		case OpLoadBase:
			out = appendf(out, "loadbase base.%s\n", in.Var)
		default:
			out = appendf(out, "%s\n", in.Op)
		}
	}
	return string(out), nil
}

func appendf(b []byte, format string, args ...interface{}) []byte {
	return append(b, []byte(fmt.Sprintf(format, args...))...)
}
