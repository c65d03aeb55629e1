package reactive

import (
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/eval"
	"github.com/rtonal/core/rational"
)

// EvaluatedNote is one note's evaluated six slots plus its corruption
// bitmap, as produced by Evaluate.
type EvaluatedNote struct {
	StartTime       eval.Value
	Duration        eval.Value
	Frequency       eval.Value
	Tempo           eval.Value
	BeatsPerMeasure eval.Value
	MeasureLength   eval.Value
	Corruption      byte
}

// moduleResolver adapts Module to eval.Resolver, resolving a dependency's
// cached value or, if it is not yet cached, evaluating it on demand — the
// fallback a Resolver implementation is expected to provide, though
// Evaluate's topological visitation order means the fallback path is never
// actually exercised in practice.
type moduleResolver struct{ m *Module }

func (r moduleResolver) Slot(note uint16, kind bytecode.Kind) (eval.Value, error) {
	return r.m.resolveSlot(uint32(note), kind)
}

func (r moduleResolver) Base(kind bytecode.Kind) (eval.Value, error) {
	return r.m.resolveSlot(BaseNoteID, kind)
}

func (r moduleResolver) FindTempo(note uint16) (eval.Value, error) {
	return r.m.walkDefinedSlot(uint32(note), bytecode.Tempo)
}

func (r moduleResolver) FindMeasure(note uint16) (eval.Value, error) {
	return r.m.findMeasure(uint32(note))
}

func (m *Module) resolveSlot(note uint32, kind bytecode.Kind) (eval.Value, error) {
	if e, ok := m.cache.get(note, kind); ok {
		return e.value, e.err
	}
	return m.evalSlot(note, kind)
}

// evalSlot runs the bytecode for note's kind slot, caches the result
// (stamped with the current generation), and ORs the corruption bit into
// the graph's bitmap for that note. Evaluation errors (missing reference,
// divide by zero) are cached too rather than propagated as a panic: the
// caller gets them back, but the rest of evaluation continues undisturbed.
func (m *Module) evalSlot(note uint32, kind bytecode.Kind) (eval.Value, error) {
	n, ok := m.notes[note]
	if !ok {
		m.cache.set(note, kind, eval.Value{}, eval.ErrMissingReference, m.generation)
		return eval.Value{}, eval.ErrMissingReference
	}
	v, err := eval.Eval(n.Exprs[kind], moduleResolver{m})
	m.cache.set(note, kind, v, err, m.generation)
	if err == nil {
		bit := kind.Bit()
		cur := m.graph.Corruption(note)
		if v.Corrupted {
			cur |= bit
		} else {
			cur &^= bit
		}
		m.graph.SetCorruption(note, cur)
	}
	return v, err
}

// Evaluate brings the module's evaluation cache up to date: the base
// note's six slots first (in EvalOrder), then the topological order of the
// dirty set and its transitive dependents, each note's six slots in
// EvalOrder. It returns a snapshot of every note's evaluated slots and
// clears the dirty set.
func (m *Module) Evaluate() map[uint32]EvaluatedNote {
	if _, ok := m.dirty[BaseNoteID]; ok {
		for _, k := range bytecode.EvalOrder {
			m.evalSlot(BaseNoteID, k)
		}
		delete(m.dirty, BaseNoteID)
	}
	rest := make([]uint32, 0, len(m.dirty))
	for id := range m.dirty {
		rest = append(rest, id)
	}
	for _, id := range m.graph.TopoSort(rest) {
		for _, k := range bytecode.EvalOrder {
			m.evalSlot(id, k)
		}
	}
	m.dirty = make(map[uint32]struct{})

	result := make(map[uint32]EvaluatedNote, len(m.notes))
	for id := range m.notes {
		result[id] = m.snapshot(id)
	}
	return result
}

func (m *Module) snapshot(id uint32) EvaluatedNote {
	slot := func(kind bytecode.Kind) eval.Value {
		e, _ := m.cache.get(id, kind)
		return e.value
	}
	return EvaluatedNote{
		StartTime:       slot(bytecode.StartTime),
		Duration:        slot(bytecode.Duration),
		Frequency:       slot(bytecode.Frequency),
		Tempo:           slot(bytecode.Tempo),
		BeatsPerMeasure: slot(bytecode.BeatsPerMeasure),
		MeasureLength:   slot(bytecode.MeasureLength),
		Corruption:      m.graph.Corruption(id),
	}
}

// SlotError returns the error (if any) cached for note's kind slot by the
// last evaluation. An ok==false result, with ErrStale as the error, means
// the slot has never been evaluated (the caller read before Evaluate).
func (m *Module) SlotError(note uint32, kind bytecode.Kind) (error, bool) {
	e, ok := m.cache.get(note, kind)
	if !ok {
		return ErrStale, false
	}
	return e.err, true
}

// walkDefinedSlot implements the Tempo/BeatsPerMeasure inheritance rule:
// the evaluated value of the referenced note's kind slot if defined,
// otherwise walk the StartTime ancestor chain (the unique note id occurring
// in the current note's StartTime bytecode) until a note with a defined
// kind slot is found, else fall back to the base note's.
func (m *Module) walkDefinedSlot(start uint32, kind bytecode.Kind) (eval.Value, error) {
	visited := make(map[uint32]struct{})
	cur := start
	for i := 0; i <= len(m.notes); i++ {
		if _, seen := visited[cur]; seen {
			break
		}
		visited[cur] = struct{}{}
		n, ok := m.notes[cur]
		if !ok {
			return eval.Value{}, eval.ErrMissingReference
		}
		if !n.Exprs[kind].IsEmpty() {
			return m.resolveSlot(cur, kind)
		}
		if cur == BaseNoteID {
			break
		}
		st := n.Exprs[bytecode.StartTime]
		if len(st.Refs) != 1 {
			break
		}
		cur = uint32(st.Refs[0])
	}
	return m.resolveSlot(BaseNoteID, kind)
}

func (m *Module) findMeasure(note uint32) (eval.Value, error) {
	tempo, err := m.walkDefinedSlot(note, bytecode.Tempo)
	if err != nil {
		return eval.Value{}, err
	}
	bpm, err := m.walkDefinedSlot(note, bytecode.BeatsPerMeasure)
	if err != nil {
		return eval.Value{}, err
	}
	sixty := eval.Exact(rational.FromInt(60))
	beatLen, err := eval.Div(sixty, tempo)
	if err != nil {
		return eval.Value{}, err
	}
	return eval.Mul(beatLen, bpm), nil
}

// FindTempo implements the public version of the Tempo inheritance walk.
func (m *Module) FindTempo(noteID uint32) (eval.Value, error) {
	return m.walkDefinedSlot(noteID, bytecode.Tempo)
}

// FindMeasureLength implements the public version of the measure-length
// inheritance walk: (60 / FindTempo(ref)) * BeatsPerMeasure(ref) under the
// same inheritance rule applied to BeatsPerMeasure.
func (m *Module) FindMeasureLength(noteID uint32) (eval.Value, error) {
	return m.findMeasure(noteID)
}

// FindInstrument walks the Frequency reference chain looking for the first
// note (inclusive of noteID) with a non-empty Instrument, falling back to
// the base note's Instrument.
func (m *Module) FindInstrument(noteID uint32) string {
	visited := make(map[uint32]struct{})
	cur := noteID
	for i := 0; i <= len(m.notes); i++ {
		if _, seen := visited[cur]; seen {
			break
		}
		visited[cur] = struct{}{}
		n, ok := m.notes[cur]
		if !ok {
			break
		}
		if n.Instrument != "" {
			return n.Instrument
		}
		if cur == BaseNoteID {
			break
		}
		fr := n.Exprs[bytecode.Frequency]
		if len(fr.Refs) != 1 {
			break
		}
		cur = uint32(fr.Refs[0])
	}
	if base, ok := m.notes[BaseNoteID]; ok {
		return base.Instrument
	}
	return ""
}
