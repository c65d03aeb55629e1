package bytecode

import "testing"

func TestBuilderDecodeRoundTrip(t *testing.T) {
	b := NewBuilder()
	if err := b.LoadConst(3, 2); err != nil {
		t.Fatal(err)
	}
	b.LoadRef(5, Frequency)
	b.LoadBase(Tempo)
	b.Op(OpAdd)
	b.Op(OpMul)
	expr := b.Build("(3/2 + [5].f) * base.tempo")

	if !expr.ReferencesBase {
		t.Errorf("expected ReferencesBase = true")
	}
	if len(expr.Refs) != 1 || expr.Refs[0] != 5 {
		t.Errorf("Refs = %v, want [5]", expr.Refs)
	}

	ins, err := Decode(expr.Code)
	if err != nil {
		t.Fatal(err)
	}
	wantOps := []Op{OpLoadConst, OpLoadRef, OpLoadBase, OpAdd, OpMul}
	if len(ins) != len(wantOps) {
		t.Fatalf("decoded %d instructions, want %d", len(ins), len(wantOps))
	}
	for i, op := range wantOps {
		if ins[i].Op != op {
			t.Errorf("instruction %d op = %v, want %v", i, ins[i].Op, op)
		}
	}
	if ins[0].Num != 3 || ins[0].Den != 2 {
		t.Errorf("LoadConst operands = %d/%d, want 3/2", ins[0].Num, ins[0].Den)
	}
	if ins[1].NoteID != 5 || ins[1].Var != Frequency {
		t.Errorf("LoadRef operands = [%d].%v, want [5].frequency", ins[1].NoteID, ins[1].Var)
	}
	if ins[2].Var != Tempo {
		t.Errorf("LoadBase operand = %v, want tempo", ins[2].Var)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{byte(OpLoadConst), 0, 0}); err == nil {
		t.Errorf("expected truncation error")
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	if _, err := Decode([]byte{0xFF}); err == nil {
		t.Errorf("expected unknown opcode error")
	}
}

func TestLoadConstOverflow(t *testing.T) {
	b := NewBuilder()
	if err := b.LoadConst(1<<40, 1); err == nil {
		t.Errorf("expected overflow error")
	}
}

func TestDisassemble(t *testing.T) {
	b := NewBuilder()
	b.LoadBase(Frequency)
	b.Op(OpNeg)
	expr := b.Build("-base.f")
	s, err := Disassemble(expr)
	if err != nil {
		t.Fatal(err)
	}
	if s == "" {
		t.Errorf("expected non-empty disassembly")
	}
}

func TestKindBitAndOrder(t *testing.T) {
	if StartTime.Bit() != 1 {
		t.Errorf("StartTime.Bit() = %d, want 1", StartTime.Bit())
	}
	if Frequency.Bit() != 1<<2 {
		t.Errorf("Frequency.Bit() = %d, want 4", Frequency.Bit())
	}
	if EvalOrder[0] != Tempo || EvalOrder[5] != Frequency {
		t.Errorf("unexpected EvalOrder %v", EvalOrder)
	}
}
