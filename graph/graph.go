// Package graph maintains the bidirectional dependency indexes over a
// reactive module's notes: general forward/inverse reference sets, three
// per-slot (StartTime, Duration, Frequency) variants of the same, the 3x3
// per-slot-on-slot maps used for fine-grained effect queries, and a
// corruption bitmap kept in sync with evaluation outcomes.
//
// Every index is a plain map used as a set, built up incrementally as
// notes register their expressions and never rebuilt wholesale; nothing
// here is recomputed from scratch except on an explicit Register or
// Remove call.
package graph

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
)

// ErrWouldCreateCycle is the error callers report when WouldCreateCycle
// finds that an expression's references would close a cycle in the
// general dependency graph. Register itself never returns it.
var ErrWouldCreateCycle = errors.New("graph: would create cycle")

// consumerSlots are the three slots that participate in the per-slot and
// per-slot-on-slot indexes.
var consumerSlots = [3]bytecode.Kind{bytecode.StartTime, bytecode.Duration, bytecode.Frequency}

func slotIndex(k bytecode.Kind) int {
	switch k {
	case bytecode.StartTime:
		return 0
	case bytecode.Duration:
		return 1
	case bytecode.Frequency:
		return 2
	default:
		return -1
	}
}

// foldProducer maps a referenced slot kind onto one of the three producer
// slots used by the per-slot-on-slot index. MeasureLength folds into
// Duration per spec (it derives from tempo x beatsPerMeasure, a
// duration-like quantity); Tempo and BeatsPerMeasure are folded the same
// way for the same reason — they're inputs to duration-like computation,
// not independently tracked producer kinds in this matrix.
func foldProducer(k bytecode.Kind) bytecode.Kind {
	switch k {
	case bytecode.MeasureLength, bytecode.Tempo, bytecode.BeatsPerMeasure:
		return bytecode.Duration
	default:
		return k
	}
}

type refEdge struct {
	note uint32
	kind bytecode.Kind
}

// Graph holds all dependency indexes for one reactive module.
type Graph struct {
	// ground truth: per (note, kind) decoded reference edges and
	// whether that slot references the base note. Every derived index
	// below is kept consistent with this as Register/Remove are called.
	slotRefs map[uint32]map[bytecode.Kind][]refEdge
	slotBase map[uint32]map[bytecode.Kind]bool

	deps               map[uint32]map[uint32]struct{}
	dependents         map[uint32]map[uint32]struct{}
	baseNoteDependents map[uint32]struct{}

	slotDeps               [3]map[uint32]map[uint32]struct{}
	slotDependents         [3]map[uint32]map[uint32]struct{}
	slotBaseNoteDependents [3]map[uint32]struct{}

	// slotOnSlot[consumer][producer][A] = set of B: A's consumerSlot
	// bytecode reads B's (folded) producerSlot.
	slotOnSlot [3][3]map[uint32]map[uint32]struct{}
	// slotOnSlotInverse[producer][consumer][B] = set of A: the inverse,
	// indexed producer-first for the slot-typed effect query.
	slotOnSlotInverse [3][3]map[uint32]map[uint32]struct{}

	corruption map[uint32]byte

	measurePrev       map[uint32]uint32
	measureCandidates map[uint32]map[uint32]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	g := &Graph{
		slotRefs:           make(map[uint32]map[bytecode.Kind][]refEdge),
		slotBase:           make(map[uint32]map[bytecode.Kind]bool),
		deps:               make(map[uint32]map[uint32]struct{}),
		dependents:         make(map[uint32]map[uint32]struct{}),
		baseNoteDependents: make(map[uint32]struct{}),
		corruption:         make(map[uint32]byte),
		measurePrev:        make(map[uint32]uint32),
		measureCandidates:  make(map[uint32]map[uint32]struct{}),
	}
	for i := range consumerSlots {
		g.slotDeps[i] = make(map[uint32]map[uint32]struct{})
		g.slotDependents[i] = make(map[uint32]map[uint32]struct{})
		g.slotBaseNoteDependents[i] = make(map[uint32]struct{})
		for j := range consumerSlots {
			g.slotOnSlot[i][j] = make(map[uint32]map[uint32]struct{})
			g.slotOnSlotInverse[i][j] = make(map[uint32]map[uint32]struct{})
		}
	}
	return g
}

func decodeRefs(expr bytecode.Expression) ([]refEdge, bool, []bytecode.Kind, error) {
	ins, err := bytecode.Decode(expr.Code)
	if err != nil {
		return nil, false, nil, err
	}
	var refs []refEdge
	var baseKinds []bytecode.Kind
	referencesBase := false
	for _, in := range ins {
		switch in.Op {
		case bytecode.OpLoadRef:
			refs = append(refs, refEdge{note: uint32(in.NoteID), kind: in.Var})
		case bytecode.OpLoadBase:
			referencesBase = true
			baseKinds = append(baseKinds, in.Var)
		}
	}
	return refs, referencesBase, baseKinds, nil
}

func targetSet(refs []refEdge) map[uint32]struct{} {
	s := make(map[uint32]struct{}, len(refs))
	for _, r := range refs {
		s[r.note] = struct{}{}
	}
	return s
}

func addToSet(m map[uint32]map[uint32]struct{}, from, to uint32) {
	s, ok := m[from]
	if !ok {
		s = make(map[uint32]struct{})
		m[from] = s
	}
	s[to] = struct{}{}
}

func removeFromSet(m map[uint32]map[uint32]struct{}, from, to uint32) {
	s, ok := m[from]
	if !ok {
		return
	}
	delete(s, to)
	if len(s) == 0 {
		delete(m, from)
	}
}

// WouldCreateCycle reports whether registering expr as note's bytecode
// (regardless of which slot) would close a cycle in the general
// dependency graph: true if note is reachable from any of expr's
// reference targets in the graph as it stands today.
func (g *Graph) WouldCreateCycle(note uint32, expr bytecode.Expression) (bool, error) {
	refs, _, _, err := decodeRefs(expr)
	if err != nil {
		return false, err
	}
	for _, r := range refs {
		if r.note == note {
			return true, nil
		}
		if g.reachable(r.note, note) {
			return true, nil
		}
	}
	return false, nil
}

func (g *Graph) reachable(from, to uint32) bool {
	if from == to {
		return true
	}
	visited := map[uint32]struct{}{from: {}}
	queue := []uint32{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for next := range g.deps[n] {
			if next == to {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// Register records note's consumerSlot kind expression, replacing
// whatever was previously registered for (note, kind) and updating every
// derived index by the symmetric difference of old and new targets.
// Callers must check WouldCreateCycle first; Register does not validate.
func (g *Graph) Register(note uint32, kind bytecode.Kind, expr bytecode.Expression) error {
	newRefs, newBase, _, err := decodeRefs(expr)
	if err != nil {
		return err
	}

	kindMap, ok := g.slotRefs[note]
	if !ok {
		kindMap = make(map[bytecode.Kind][]refEdge)
		g.slotRefs[note] = kindMap
	}
	oldRefs := kindMap[kind]

	baseMap, ok := g.slotBase[note]
	if !ok {
		baseMap = make(map[bytecode.Kind]bool)
		g.slotBase[note] = baseMap
	}
	oldBase := baseMap[kind]

	// Snapshot the note's total target set before mutating this kind's
	// ground truth, so the general-index symmetric diff compares
	// genuinely old vs. new totals.
	oldTotal := g.recomputeTotalAfterSlotUpdate(note)

	kindMap[kind] = newRefs
	baseMap[kind] = newBase

	newTotal := g.recomputeTotalAfterSlotUpdate(note)

	g.updateGeneral(note, oldTotal, newTotal, oldBase, newBase)

	if si := slotIndex(kind); si >= 0 {
		g.updateSlot(si, note, oldRefs, newRefs, oldBase, newBase)
		g.updateSlotOnSlot(si, note, oldRefs, newRefs)
		g.updateMeasureChain(note, kind, expr, newRefs)
	}
	return nil
}

func (g *Graph) updateGeneral(note uint32, oldTotal, newTotal map[uint32]struct{}, oldBase, newBase bool) {
	for t := range oldTotal {
		if _, still := newTotal[t]; !still {
			removeFromSet(g.dependents, t, note)
		}
	}
	for t := range newTotal {
		if _, was := oldTotal[t]; !was {
			addToSet(g.dependents, t, note)
		}
	}
	if len(newTotal) == 0 {
		delete(g.deps, note)
	} else {
		g.deps[note] = newTotal
	}

	if g.noteReferencesBaseAnywhere(note) {
		g.baseNoteDependents[note] = struct{}{}
	} else {
		delete(g.baseNoteDependents, note)
	}
}

func (g *Graph) noteReferencesBaseAnywhere(note uint32) bool {
	for _, v := range g.slotBase[note] {
		if v {
			return true
		}
	}
	return false
}

// recomputeTotalAfterSlotUpdate rebuilds note's overall target set from
// the (already updated) ground truth in g.slotRefs. Cost is proportional
// to note's total reference count across its six slots.
func (g *Graph) recomputeTotalAfterSlotUpdate(note uint32) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for _, refs := range g.slotRefs[note] {
		for _, r := range refs {
			out[r.note] = struct{}{}
		}
	}
	return out
}

func (g *Graph) updateSlot(si int, note uint32, oldRefs, newRefs []refEdge, oldBase, newBase bool) {
	oldSet := targetSet(oldRefs)
	newSet := targetSet(newRefs)
	for t := range oldSet {
		if _, still := newSet[t]; !still {
			removeFromSet(g.slotDependents[si], t, note)
		}
	}
	for t := range newSet {
		if _, was := oldSet[t]; !was {
			addToSet(g.slotDependents[si], t, note)
		}
	}
	if len(newSet) == 0 {
		delete(g.slotDeps[si], note)
	} else {
		g.slotDeps[si][note] = newSet
	}
	if newBase {
		g.slotBaseNoteDependents[si][note] = struct{}{}
	} else if oldBase {
		delete(g.slotBaseNoteDependents[si], note)
	}
}

func (g *Graph) updateSlotOnSlot(consumerIdx int, note uint32, oldRefs, newRefs []refEdge) {
	oldByProducer := [3]map[uint32]struct{}{}
	newByProducer := [3]map[uint32]struct{}{}
	for i := range oldByProducer {
		oldByProducer[i] = make(map[uint32]struct{})
		newByProducer[i] = make(map[uint32]struct{})
	}
	for _, r := range oldRefs {
		pi := slotIndex(foldProducer(r.kind))
		if pi >= 0 {
			oldByProducer[pi][r.note] = struct{}{}
		}
	}
	for _, r := range newRefs {
		pi := slotIndex(foldProducer(r.kind))
		if pi >= 0 {
			newByProducer[pi][r.note] = struct{}{}
		}
	}
	for pi := 0; pi < 3; pi++ {
		for t := range oldByProducer[pi] {
			if _, still := newByProducer[pi][t]; !still {
				removeFromSet(g.slotOnSlot[consumerIdx][pi], note, t)
				removeFromSet(g.slotOnSlotInverse[pi][consumerIdx], t, note)
			}
		}
		for t := range newByProducer[pi] {
			if _, was := oldByProducer[pi][t]; !was {
				addToSet(g.slotOnSlot[consumerIdx][pi], note, t)
				addToSet(g.slotOnSlotInverse[pi][consumerIdx], t, note)
			}
		}
	}
}

// Remove deletes note entirely from every index: its forward entries, its
// appearance in every inverse entry, and its corruption bitmap.
func (g *Graph) Remove(note uint32) {
	for t := range g.deps[note] {
		removeFromSet(g.dependents, t, note)
	}
	delete(g.deps, note)
	for t := range g.dependents[note] {
		removeFromSet(g.deps, t, note)
	}
	delete(g.dependents, note)
	delete(g.baseNoteDependents, note)

	for i := 0; i < 3; i++ {
		for t := range g.slotDeps[i][note] {
			removeFromSet(g.slotDependents[i], t, note)
		}
		delete(g.slotDeps[i], note)
		for t := range g.slotDependents[i][note] {
			removeFromSet(g.slotDeps[i], t, note)
		}
		delete(g.slotDependents[i], note)
		delete(g.slotBaseNoteDependents[i], note)
		for j := 0; j < 3; j++ {
			for t := range g.slotOnSlot[i][j][note] {
				removeFromSet(g.slotOnSlotInverse[j][i], t, note)
			}
			delete(g.slotOnSlot[i][j], note)
			for t := range g.slotOnSlotInverse[i][j][note] {
				removeFromSet(g.slotOnSlot[j][i], t, note)
			}
			delete(g.slotOnSlotInverse[i][j], note)
		}
	}

	delete(g.slotRefs, note)
	delete(g.slotBase, note)
	delete(g.corruption, note)
	delete(g.measurePrev, note)
	for successor := range g.measureCandidates[note] {
		delete(g.measurePrev, successor)
	}
	delete(g.measureCandidates, note)
	for prev, set := range g.measureCandidates {
		delete(set, note)
		if len(set) == 0 {
			delete(g.measureCandidates, prev)
		}
	}
}

// Dependents returns the sorted set of notes directly referencing note
// anywhere in their bytecode.
func (g *Graph) Dependents(note uint32) []uint32 {
	return sortedKeys(g.dependents[note])
}

// Deps returns the sorted set of notes note directly references anywhere.
func (g *Graph) Deps(note uint32) []uint32 {
	return sortedKeys(g.deps[note])
}

// SetCorruption overwrites note's corruption bitmap.
func (g *Graph) SetCorruption(note uint32, bits byte) {
	if bits == 0 {
		delete(g.corruption, note)
		return
	}
	g.corruption[note] = bits
}

// Corruption returns note's corruption bitmap (zero if clean or unknown).
func (g *Graph) Corruption(note uint32) byte {
	return g.corruption[note]
}

func sortedKeys(m map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
