package graph

import (
	"sort"

	"github.com/rtonal/core/bytecode"
)

// TransitiveDeps returns every note reachable from note by following
// forward (deps) edges, via BFS, excluding note itself.
func (g *Graph) TransitiveDeps(note uint32) []uint32 {
	return g.bfs(note, g.deps)
}

// TransitiveDependents returns every note reachable from note by
// following inverse (dependents) edges, via BFS, excluding note itself —
// i.e. every note whose evaluation is affected, directly or indirectly,
// by a change to note.
func (g *Graph) TransitiveDependents(note uint32) []uint32 {
	return g.bfs(note, g.dependents)
}

func (g *Graph) bfs(start uint32, adj map[uint32]map[uint32]struct{}) []uint32 {
	visited := map[uint32]struct{}{start: {}}
	queue := []uint32{start}
	var out []uint32
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		neighbors := make([]uint32, 0, len(adj[n]))
		for m := range adj[n] {
			neighbors = append(neighbors, m)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		for _, m := range neighbors {
			if _, seen := visited[m]; seen {
				continue
			}
			visited[m] = struct{}{}
			out = append(out, m)
			queue = append(queue, m)
		}
	}
	return out
}

// SlotEffect is one (note, slot) pair reached by a slot-typed transitive
// effect query.
type SlotEffect struct {
	Note uint32
	Slot bytecode.Kind
}

// SlotTypedEffect returns every (m, affectedSlot) pair reachable from a
// change to (note, producerSlot) by following the per-slot-on-slot
// inverse index, visiting each reachable (note, slot) pair at most once.
// producerSlot is folded the same way Register folds it (MeasureLength/
// Tempo/BeatsPerMeasure all behave as Duration producers).
func (g *Graph) SlotTypedEffect(note uint32, producerSlot bytecode.Kind) []SlotEffect {
	pi := slotIndex(foldProducer(producerSlot))
	if pi < 0 {
		return nil
	}
	type key struct {
		note uint32
		slot int
	}
	visited := map[key]struct{}{}
	var out []SlotEffect
	type frontierItem struct {
		note uint32
		slot int
	}
	queue := []frontierItem{{note: note, slot: pi}}
	visited[key{note, pi}] = struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for ci := 0; ci < 3; ci++ {
			consumers := make([]uint32, 0, len(g.slotOnSlotInverse[cur.slot][ci][cur.note]))
			for m := range g.slotOnSlotInverse[cur.slot][ci][cur.note] {
				consumers = append(consumers, m)
			}
			sort.Slice(consumers, func(i, j int) bool { return consumers[i] < consumers[j] })
			for _, m := range consumers {
				k := key{m, ci}
				if _, seen := visited[k]; seen {
					continue
				}
				visited[k] = struct{}{}
				out = append(out, SlotEffect{Note: m, Slot: consumerSlots[ci]})
				queue = append(queue, frontierItem{note: m, slot: ci})
			}
		}
	}
	return out
}

// TopoSort returns a valid linear extension of the subgraph induced by
// notes, restricted to deps/dependents edges between members of notes,
// via Kahn's algorithm. Ties (equal in-degree) are broken by ascending
// identifier, so the result is deterministic.
func (g *Graph) TopoSort(notes []uint32) []uint32 {
	member := make(map[uint32]struct{}, len(notes))
	for _, n := range notes {
		member[n] = struct{}{}
	}
	indegree := make(map[uint32]int, len(notes))
	for _, n := range notes {
		indegree[n] = 0
	}
	for _, n := range notes {
		for dep := range g.deps[n] {
			if _, ok := member[dep]; ok {
				indegree[n]++
			}
		}
	}

	ready := make([]uint32, 0, len(notes))
	for _, n := range notes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	out := make([]uint32, 0, len(notes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		successors := make([]uint32, 0, len(g.dependents[n]))
		for s := range g.dependents[n] {
			if _, ok := member[s]; ok {
				successors = append(successors, s)
			}
		}
		sort.Slice(successors, func(i, j int) bool { return successors[i] < successors[j] })
		for _, s := range successors {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	return out
}
