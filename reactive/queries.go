package reactive

import (
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/graph"
)

// TransitiveDependents returns every note whose evaluated value depends,
// directly or indirectly, on note (BFS over the general dependency graph).
func (m *Module) TransitiveDependents(note uint32) []uint32 {
	return m.graph.TransitiveDependents(note)
}

// TransitiveDeps returns every note that note depends on, directly or
// indirectly.
func (m *Module) TransitiveDeps(note uint32) []uint32 {
	return m.graph.TransitiveDeps(note)
}

// SlotTypedEffect returns every (note, slot) pair reachable by following
// per-slot-on-slot edges from a change at (note, producerSlot); each
// reachable (note, slot) pair is visited at most once.
func (m *Module) SlotTypedEffect(note uint32, producerSlot bytecode.Kind) []graph.SlotEffect {
	return m.graph.SlotTypedEffect(note, producerSlot)
}

// MeasureChain returns the chronological sequence of measure markers
// chained through marker: it walks backward through chain-link
// predecessors to the anchor, then forward, choosing at each step the
// chain-link successor with the earliest evaluated StartTime. Both walks
// are loop-guarded by the note count, since a pathological or stale graph
// could otherwise cycle.
func (m *Module) MeasureChain(marker uint32) []uint32 {
	anchor := marker
	seenBack := map[uint32]struct{}{marker: {}}
	for i := 0; i <= len(m.notes); i++ {
		prev, ok := m.graph.MeasurePrev(anchor)
		if !ok {
			break
		}
		if _, dup := seenBack[prev]; dup {
			break
		}
		seenBack[prev] = struct{}{}
		anchor = prev
	}

	chain := []uint32{anchor}
	seenFwd := map[uint32]struct{}{anchor: {}}
	cur := anchor
	for i := 0; i <= len(m.notes); i++ {
		candidates := m.graph.MeasureChainCandidates(cur)
		var best uint32
		var bestStart float64
		found := false
		for _, c := range candidates {
			if _, dup := seenFwd[c]; dup {
				continue
			}
			e, ok := m.cache.get(c, bytecode.StartTime)
			if !ok {
				continue
			}
			if !found || e.value.Float < bestStart {
				best, bestStart, found = c, e.value.Float, true
			}
		}
		if !found {
			break
		}
		chain = append(chain, best)
		seenFwd[best] = struct{}{}
		cur = best
	}
	return chain
}
