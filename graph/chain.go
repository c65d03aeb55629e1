package graph

import "github.com/rtonal/core/bytecode"

// updateMeasureChain detects whether note's StartTime expression is a
// measure-chain link — it reads some note p's StartTime directly and also
// calls measure(p) (the "prev.t + measure(prev)" shape) — and maintains
// the prev/candidate-successor pointers used by the measure-chain walk.
// Only StartTime registrations participate; any other slot leaves the
// chain pointer untouched.
func (g *Graph) updateMeasureChain(note uint32, kind bytecode.Kind, expr bytecode.Expression, _ []refEdge) {
	if kind != bytecode.StartTime {
		return
	}
	if old, ok := g.measurePrev[note]; ok {
		removeFromSet(g.measureCandidates, old, note)
		delete(g.measurePrev, note)
	}
	prev, ok := chainPrev(expr)
	if !ok {
		return
	}
	g.measurePrev[note] = prev
	addToSet(g.measureCandidates, prev, note)
}

// chainPrev scans expr's bytecode for the "prev.t + measure(prev)" shape:
// a FindMeasure call whose argument is a bare note id p, where the same
// expression also directly reads p's StartTime. Returns p and true if
// found.
func chainPrev(expr bytecode.Expression) (uint32, bool) {
	ins, err := bytecode.Decode(expr.Code)
	if err != nil {
		return 0, false
	}
	for i, in := range ins {
		if in.Op != bytecode.OpFindMeasure || i == 0 {
			continue
		}
		prevIns := ins[i-1]
		if prevIns.Op != bytecode.OpLoadConst || prevIns.Den != 1 {
			continue
		}
		p := uint32(prevIns.Num)
		for _, other := range ins {
			if other.Op == bytecode.OpLoadRef && uint32(other.NoteID) == p && other.Var == bytecode.StartTime {
				return p, true
			}
		}
	}
	return 0, false
}

// MeasurePrev returns the note this measure marker chains from, if note's
// StartTime expression matches the chain-link shape.
func (g *Graph) MeasurePrev(note uint32) (uint32, bool) {
	p, ok := g.measurePrev[note]
	return p, ok
}

// MeasureChainCandidates returns every note that chain-links from note
// (i.e. whose StartTime references note via the "note.t + measure(note)"
// shape), in ascending id order; the caller chooses among them by
// evaluated StartTime.
func (g *Graph) MeasureChainCandidates(note uint32) []uint32 {
	return sortedKeys(g.measureCandidates[note])
}
