package compile

import (
	"testing"

	"github.com/rtonal/core/bytecode"
)

func TestCompileDSLArithmetic(t *testing.T) {
	e, warns, err := Compile("base.f * 2^(7/12)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	wantOps := []bytecode.Op{bytecode.OpLoadBase, bytecode.OpLoadConst, bytecode.OpLoadConst, bytecode.OpLoadConst, bytecode.OpDiv, bytecode.OpPow, bytecode.OpMul}
	if len(ins) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d: %+v", len(ins), len(wantOps), ins)
	}
	for i, op := range wantOps {
		if ins[i].Op != op {
			t.Errorf("instruction %d: got %v, want %v", i, ins[i].Op, op)
		}
	}
	if !e.ReferencesBase {
		t.Error("expected ReferencesBase true")
	}
}

func TestCompileNoteRef(t *testing.T) {
	e, _, err := Compile("[3].t + [4].d")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(e.Refs) != 2 || e.Refs[0] != 3 || e.Refs[1] != 4 {
		t.Errorf("got Refs=%v, want [3 4]", e.Refs)
	}
}

func TestCompileHelperTempo(t *testing.T) {
	e, _, err := Compile("tempo([2])")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(e.Refs) != 1 || e.Refs[0] != 2 {
		t.Errorf("got Refs=%v, want [2]", e.Refs)
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(ins) != 2 || ins[0].Op != bytecode.OpLoadConst || ins[1].Op != bytecode.OpFindTempo {
		t.Errorf("got %+v, want [LoadConst FindTempo]", ins)
	}
}

func TestCompileHelperBeatExpansion(t *testing.T) {
	e, _, err := Compile("beat(base)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !e.ReferencesBase {
		t.Error("expected ReferencesBase true")
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	wantOps := []bytecode.Op{bytecode.OpLoadConst, bytecode.OpLoadConst, bytecode.OpFindTempo, bytecode.OpDiv}
	if len(ins) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d: %+v", len(ins), len(wantOps), ins)
	}
	for i, op := range wantOps {
		if ins[i].Op != op {
			t.Errorf("instruction %d: got %v, want %v", i, ins[i].Op, op)
		}
	}
	if ins[0].Num != 60 || ins[0].Den != 1 {
		t.Errorf("first const should be 60/1, got %d/%d", ins[0].Num, ins[0].Den)
	}
}

func TestCompileHelperBareRefRequired(t *testing.T) {
	_, warns, err := Compile("tempo([2].f)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(warns) == 0 {
		t.Error("expected a warning for helper argument with a property selector")
	}
}

func TestCompileLegacyFluentSurface(t *testing.T) {
	e, warns, err := Compile("module.getNoteById(3).getVariable('frequency').mul(new Fraction(3,2))")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(e.Refs) != 1 || e.Refs[0] != 3 {
		t.Errorf("got Refs=%v, want [3]", e.Refs)
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	wantOps := []bytecode.Op{bytecode.OpLoadRef, bytecode.OpLoadConst, bytecode.OpMul}
	if len(ins) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d: %+v", len(ins), len(wantOps), ins)
	}
}

func TestCompileLegacyFindTempo(t *testing.T) {
	e, _, err := Compile("module.findTempo(module.baseNote)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !e.ReferencesBase {
		t.Error("expected ReferencesBase true")
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(ins) != 2 || ins[1].Op != bytecode.OpFindTempo {
		t.Errorf("got %+v", ins)
	}
}

func TestCompileMalformedFallsBackToZero(t *testing.T) {
	e, warns, err := Compile("[[ this is not an expression ++")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !e.IsEmpty() {
		t.Error("expected empty fallback expression")
	}
	if len(warns) == 0 {
		t.Error("expected a parse-failure warning")
	}
	if e.Source != "[[ this is not an expression ++" {
		t.Errorf("fallback Source not preserved: %q", e.Source)
	}
}

func TestCompileEmptyString(t *testing.T) {
	e, warns, err := Compile("")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !e.IsEmpty() || len(warns) != 0 {
		t.Errorf("expected empty expression with no warnings, got %+v %v", e, warns)
	}
}

func TestCacheMemoizes(t *testing.T) {
	c := NewCache()
	src := "base.f + 1/2"
	e1, _, err := c.Compile(src)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("got Len()=%d, want 1", c.Len())
	}
	e2, _, err := c.Compile(src)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if string(e1.Code) != string(e2.Code) {
		t.Error("expected identical cached bytecode")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("got Len()=%d after Clear, want 0", c.Len())
	}
}
