package eval

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

type fakeResolver struct {
	slots   map[[2]uint16]Value // key: {note, kind}
	base    map[bytecode.Kind]Value
	tempo   map[uint16]Value
	measure map[uint16]Value
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		slots:   make(map[[2]uint16]Value),
		base:    make(map[bytecode.Kind]Value),
		tempo:   make(map[uint16]Value),
		measure: make(map[uint16]Value),
	}
}

func (f *fakeResolver) Slot(note uint16, kind bytecode.Kind) (Value, error) {
	v, ok := f.slots[[2]uint16{note, uint16(kind)}]
	if !ok {
		return Value{}, ErrMissingReference
	}
	return v, nil
}

func (f *fakeResolver) Base(kind bytecode.Kind) (Value, error) {
	v, ok := f.base[kind]
	if !ok {
		return Value{}, ErrMissingReference
	}
	return v, nil
}

func (f *fakeResolver) FindTempo(note uint16) (Value, error) {
	v, ok := f.tempo[note]
	if !ok {
		return Value{}, ErrMissingReference
	}
	return v, nil
}

func (f *fakeResolver) FindMeasure(note uint16) (Value, error) {
	v, ok := f.measure[note]
	if !ok {
		return Value{}, ErrMissingReference
	}
	return v, nil
}

func build(t *testing.T, fn func(b *bytecode.Builder)) bytecode.Expression {
	t.Helper()
	b := bytecode.NewBuilder()
	fn(b)
	return b.Build("")
}

func TestEvalEmpty(t *testing.T) {
	v, err := Eval(bytecode.Empty, newFakeResolver())
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v.Corrupted || !v.Value.IsZero() {
		t.Errorf("got %+v, want exact zero", v)
	}
}

func TestEvalBaseFrequencyTimesChromaticStep(t *testing.T) {
	r := newFakeResolver()
	r.base[bytecode.Frequency] = exact(rational.One)
	e := build(t, func(b *bytecode.Builder) {
		b.LoadBase(bytecode.Frequency)
		b.LoadConst(2, 1)
		b.LoadConst(12, 12)
		b.Op(bytecode.OpPow)
		b.Op(bytecode.OpMul)
	})
	v, err := Eval(e, r)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v.Corrupted {
		t.Fatalf("expected exact result for 2^(12/12), got corrupted")
	}
	if !v.Value.Equal(rational.FromInt(2)) {
		t.Errorf("got %v, want 2", v.Value)
	}
}

func TestEvalCorruptedPowerPropagates(t *testing.T) {
	r := newFakeResolver()
	r.base[bytecode.Frequency] = exact(rational.One)
	e := build(t, func(b *bytecode.Builder) {
		b.LoadBase(bytecode.Frequency)
		b.LoadConst(2, 1)
		b.LoadConst(7, 12)
		b.Op(bytecode.OpPow)
		b.Op(bytecode.OpMul)
	})
	v, err := Eval(e, r)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if !v.Corrupted {
		t.Errorf("expected corrupted result for 2^(7/12)")
	}
}

func TestEvalDivideByZero(t *testing.T) {
	e := build(t, func(b *bytecode.Builder) {
		b.LoadConst(1, 1)
		b.LoadConst(0, 1)
		b.Op(bytecode.OpDiv)
	})
	_, err := Eval(e, newFakeResolver())
	if errors.Cause(err) != ErrDivideByZero {
		t.Errorf("got %v, want ErrDivideByZero", err)
	}
}

func TestEvalMissingReference(t *testing.T) {
	e := build(t, func(b *bytecode.Builder) {
		b.LoadRef(9, bytecode.Frequency)
	})
	_, err := Eval(e, newFakeResolver())
	if errors.Cause(err) != ErrMissingReference {
		t.Errorf("got %v, want ErrMissingReference", err)
	}
}

func TestEvalFindTempoHelper(t *testing.T) {
	r := newFakeResolver()
	r.tempo[3] = exact(rational.FromInt(120))
	e := build(t, func(b *bytecode.Builder) {
		b.LoadConst(3, 1)
		b.Op(bytecode.OpFindTempo)
	})
	v, err := Eval(e, r)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if !v.Value.Equal(rational.FromInt(120)) {
		t.Errorf("got %v, want 120", v.Value)
	}
}

func TestEvalSwapAndDup(t *testing.T) {
	e := build(t, func(b *bytecode.Builder) {
		b.LoadConst(1, 1)
		b.LoadConst(2, 1)
		b.Op(bytecode.OpSwap)
		b.Op(bytecode.OpSub)
		b.LoadConst(3, 1)
		b.Op(bytecode.OpDup)
		b.Op(bytecode.OpMul)
		b.Op(bytecode.OpAdd)
	})
	v, err := Eval(e, newFakeResolver())
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	// swap(1,2) -> stack [2,1], sub -> 2-1=1; dup(3)*3=9; 1+9=10
	if !v.Value.Equal(rational.FromInt(10)) {
		t.Errorf("got %v, want 10", v.Value)
	}
}
