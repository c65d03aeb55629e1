package graph

import (
	"reflect"
	"testing"

	"github.com/rtonal/core/bytecode"
)

func refExpr(t *testing.T, note uint16, kind bytecode.Kind) bytecode.Expression {
	t.Helper()
	b := bytecode.NewBuilder()
	b.LoadRef(note, kind)
	return b.Build("")
}

func constExpr(t *testing.T) bytecode.Expression {
	t.Helper()
	b := bytecode.NewBuilder()
	if err := b.LoadConst(1, 1); err != nil {
		t.Fatal(err)
	}
	return b.Build("")
}

func sumRefExpr(t *testing.T, notes ...uint16) bytecode.Expression {
	t.Helper()
	b := bytecode.NewBuilder()
	b.LoadRef(notes[0], bytecode.Frequency)
	for _, n := range notes[1:] {
		b.LoadRef(n, bytecode.Frequency)
		b.Op(bytecode.OpAdd)
	}
	return b.Build("")
}

func TestRegisterAndDependents(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if got := g.Dependents(1); !reflect.DeepEqual(got, []uint32{2}) {
		t.Errorf("got Dependents(1)=%v, want [2]", got)
	}
	if got := g.Deps(2); !reflect.DeepEqual(got, []uint32{1}) {
		t.Errorf("got Deps(2)=%v, want [1]", got)
	}
}

func TestRegisterReplacesPreviousEdges(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 3, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if got := g.Dependents(1); len(got) != 0 {
		t.Errorf("expected note 1 to have no dependents after re-register, got %v", got)
	}
	if got := g.Dependents(3); !reflect.DeepEqual(got, []uint32{2}) {
		t.Errorf("got Dependents(3)=%v, want [2]", got)
	}
}

func TestRemoveClearsAllIndexes(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	g.Remove(2)
	if got := g.Dependents(1); len(got) != 0 {
		t.Errorf("expected no dependents after Remove, got %v", got)
	}
	if got := g.Deps(2); len(got) != 0 {
		t.Errorf("expected no deps after Remove, got %v", got)
	}
}

func TestWouldCreateCycleDirect(t *testing.T) {
	g := New()
	if err := g.Register(1, bytecode.StartTime, refExpr(t, 2, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	cyc, err := g.WouldCreateCycle(2, refExpr(t, 1, bytecode.StartTime))
	if err != nil {
		t.Fatal(err)
	}
	if !cyc {
		t.Error("expected cycle detection to reject note 2 referencing note 1")
	}
}

func TestWouldCreateCycleTransitive(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(3, bytecode.StartTime, refExpr(t, 2, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	cyc, err := g.WouldCreateCycle(1, refExpr(t, 3, bytecode.StartTime))
	if err != nil {
		t.Fatal(err)
	}
	if !cyc {
		t.Error("expected transitive cycle (1 -> 3 -> 2 -> 1) to be rejected")
	}
}

func TestWouldCreateCycleAcyclicOK(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	cyc, err := g.WouldCreateCycle(3, refExpr(t, 1, bytecode.StartTime))
	if err != nil {
		t.Fatal(err)
	}
	if cyc {
		t.Error("note 3 referencing note 1 should not be a cycle")
	}
}

func TestTransitiveDeps(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(3, bytecode.StartTime, refExpr(t, 2, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	deps := g.TransitiveDeps(3)
	if !reflect.DeepEqual(deps, []uint32{2, 1}) {
		t.Errorf("got TransitiveDeps(3)=%v, want [2 1]", deps)
	}
	dependents := g.TransitiveDependents(1)
	if !reflect.DeepEqual(dependents, []uint32{2, 3}) {
		t.Errorf("got TransitiveDependents(1)=%v, want [2 3]", dependents)
	}
}

func TestTopoSort(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.StartTime, refExpr(t, 1, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(3, bytecode.StartTime, refExpr(t, 2, bytecode.StartTime)); err != nil {
		t.Fatal(err)
	}
	order := g.TopoSort([]uint32{3, 2, 1})
	if !reflect.DeepEqual(order, []uint32{1, 2, 3}) {
		t.Errorf("got TopoSort=%v, want [1 2 3]", order)
	}
}

func TestTopoSortDeterministicTieBreak(t *testing.T) {
	g := New()
	order := g.TopoSort([]uint32{5, 2, 9, 1})
	if !reflect.DeepEqual(order, []uint32{1, 2, 5, 9}) {
		t.Errorf("got TopoSort=%v, want ascending ids with no edges", order)
	}
}

func TestSlotTypedEffect(t *testing.T) {
	g := New()
	// note 2's Frequency slot reads note 1's Frequency.
	if err := g.Register(2, bytecode.Frequency, refExpr(t, 1, bytecode.Frequency)); err != nil {
		t.Fatal(err)
	}
	effects := g.SlotTypedEffect(1, bytecode.Frequency)
	want := []SlotEffect{{Note: 2, Slot: bytecode.Frequency}}
	if !reflect.DeepEqual(effects, want) {
		t.Errorf("got SlotTypedEffect=%+v, want %+v", effects, want)
	}
}

func TestSlotTypedEffectFoldsMeasureLengthIntoDuration(t *testing.T) {
	g := New()
	if err := g.Register(2, bytecode.Duration, refExpr(t, 1, bytecode.MeasureLength)); err != nil {
		t.Fatal(err)
	}
	effects := g.SlotTypedEffect(1, bytecode.Duration)
	want := []SlotEffect{{Note: 2, Slot: bytecode.Duration}}
	if !reflect.DeepEqual(effects, want) {
		t.Errorf("got SlotTypedEffect=%+v, want %+v", effects, want)
	}
}

func TestMeasureChainDetection(t *testing.T) {
	g := New()
	// m2.t = m1.t + measure(m1)
	b := bytecode.NewBuilder()
	b.LoadRef(1, bytecode.StartTime)
	if err := b.LoadConst(1, 1); err != nil {
		t.Fatal(err)
	}
	b.Op(bytecode.OpFindMeasure)
	b.Op(bytecode.OpAdd)
	expr := b.Build("")
	if err := g.Register(2, bytecode.StartTime, expr); err != nil {
		t.Fatal(err)
	}
	prev, ok := g.MeasurePrev(2)
	if !ok || prev != 1 {
		t.Errorf("got MeasurePrev(2)=(%d,%v), want (1,true)", prev, ok)
	}
	candidates := g.MeasureChainCandidates(1)
	if !reflect.DeepEqual(candidates, []uint32{2}) {
		t.Errorf("got MeasureChainCandidates(1)=%v, want [2]", candidates)
	}
}

func TestMeasureChainNotDetectedForAnchor(t *testing.T) {
	g := New()
	// anchor: base.t + 4*beat(base) has no FindMeasure call at all.
	b := bytecode.NewBuilder()
	b.LoadBase(bytecode.StartTime)
	if err := b.LoadConst(4, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadConst(60, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadConst(0, 1); err != nil {
		t.Fatal(err)
	}
	b.MarkReferencesBase()
	b.Op(bytecode.OpFindTempo)
	b.Op(bytecode.OpDiv)
	b.Op(bytecode.OpMul)
	b.Op(bytecode.OpAdd)
	expr := b.Build("")
	if err := g.Register(4, bytecode.StartTime, expr); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.MeasurePrev(4); ok {
		t.Error("anchor measure should have no MeasurePrev")
	}
}

func TestCorruptionBitmap(t *testing.T) {
	g := New()
	g.SetCorruption(5, bytecode.Frequency.Bit())
	if g.Corruption(5) != bytecode.Frequency.Bit() {
		t.Errorf("got Corruption(5)=%d, want %d", g.Corruption(5), bytecode.Frequency.Bit())
	}
	g.SetCorruption(5, 0)
	if g.Corruption(5) != 0 {
		t.Error("expected corruption cleared")
	}
}

func TestConstExprHasNoDependents(t *testing.T) {
	g := New()
	if err := g.Register(1, bytecode.StartTime, constExpr(t)); err != nil {
		t.Fatal(err)
	}
	if got := g.Deps(1); len(got) != 0 {
		t.Errorf("got Deps(1)=%v, want empty", got)
	}
}

func TestSumRefExprMultipleDeps(t *testing.T) {
	g := New()
	if err := g.Register(3, bytecode.Frequency, sumRefExpr(t, 1, 2)); err != nil {
		t.Fatal(err)
	}
	if got := g.Deps(3); !reflect.DeepEqual(got, []uint32{1, 2}) {
		t.Errorf("got Deps(3)=%v, want [1 2]", got)
	}
}
