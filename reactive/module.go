// Package reactive implements the reactive composition module: a map of
// notes, each carrying six bytecode expression slots, kept consistent
// through a dependency graph and an evaluation cache. It owns the graph and
// the cache outright, neither is independently mutable by external code,
// and offers no internal locking; callers running Module from more than
// one goroutine must serialize their own access.
package reactive

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/compile"
	"github.com/rtonal/core/eval"
	"github.com/rtonal/core/graph"
	"github.com/rtonal/core/rational"
)

// BaseNoteID is the distinguished identifier of the base note.
const BaseNoteID uint32 = 0

// Sentinel errors surfaced to collaborators.
var (
	ErrWouldCreateCycle    = graph.ErrWouldCreateCycle
	ErrMissingReference    = eval.ErrMissingReference
	ErrDivideByZero        = eval.ErrDivideByZero
	ErrUnknownProperty     = compile.ErrUnknownProperty
	ErrStale               = errors.New("reactive: slot read before evaluate")
	ErrRemoveBaseNote      = errors.New("reactive: cannot remove the base note")
	ErrNoteNotFound        = errors.New("reactive: note not found")
	ErrBaseNoteMayNotRefer = errors.New("reactive: base note expressions may not reference other notes")
	ErrBaseNoteRequired    = errors.New("reactive: base note's startTime, frequency, tempo and beatsPerMeasure must be set at construction")
)

// Note is one note's six expression slots plus its two opaque string
// properties. Id 0 is reserved for the distinguished base note.
type Note struct {
	ID         uint32
	Exprs      [bytecode.NumKinds]bytecode.Expression
	Color      string
	Instrument string
}

// Module is the reactive composition: notes, their dependency graph, the
// evaluation cache, and the compiler's memoization cache.
type Module struct {
	notes      map[uint32]*Note
	nextID     uint32
	generation uint64
	dirty      map[uint32]struct{}

	graph   *graph.Graph
	cache   *evalCache
	compile *compile.Cache
	approx  rational.Approximator

	pendingBase *baseNoteSeed
}

type baseNoteSeed struct {
	startTime, frequency, tempo, beatsPerMeasure string
}

// Option configures a Module at construction using the functional-options
// idiom: each Option is applied in order, and an error from any of them
// aborts New.
type Option func(*Module) error

// MaxDenominator bounds the denominator used when approximating decimal
// literals as rationals (default 10,000).
func MaxDenominator(n int64) Option {
	return func(m *Module) error {
		m.approx.MaxDenominator = n
		return nil
	}
}

// Tolerance sets the approximation tolerance used when converting decimal
// literals to rationals (default 1e-10).
func Tolerance(tol float64) Option {
	return func(m *Module) error {
		m.approx.Tolerance = tol
		return nil
	}
}

// BaseNote seeds the base note's four required slots at construction
// ("The base note's StartTime, Frequency, Tempo, and
// BeatsPerMeasure must be defined at module construction"). Any of the
// four arguments may be the empty string to leave that slot unset, but
// Evaluate will then read it as exact zero — callers wanting a musically
// sane base note supply all four.
func BaseNote(startTime, frequency, tempo, beatsPerMeasure string) Option {
	return func(m *Module) error {
		m.pendingBase = &baseNoteSeed{
			startTime:       startTime,
			frequency:       frequency,
			tempo:           tempo,
			beatsPerMeasure: beatsPerMeasure,
		}
		return nil
	}
}

// New constructs a Module. BaseNote must be one of opts, or New fails with
// ErrBaseNoteRequired.
func New(opts ...Option) (*Module, error) {
	m := &Module{
		notes:  map[uint32]*Note{0: {ID: 0}},
		nextID: 1,
		dirty:  make(map[uint32]struct{}),
		graph:  graph.New(),
		approx: rational.DefaultApproximator,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.pendingBase == nil {
		return nil, ErrBaseNoteRequired
	}
	m.compile = compile.NewCacheWithApprox(m.approx)
	m.cache = newEvalCache()

	seed := m.pendingBase
	m.pendingBase = nil
	base := m.notes[0]
	for _, s := range []struct {
		kind bytecode.Kind
		dsl  string
	}{
		{bytecode.StartTime, seed.startTime},
		{bytecode.Frequency, seed.frequency},
		{bytecode.Tempo, seed.tempo},
		{bytecode.BeatsPerMeasure, seed.beatsPerMeasure},
	} {
		if s.dsl == "" {
			continue
		}
		if _, err := m.setBaseExpression(base, s.kind, s.dsl); err != nil {
			return nil, err
		}
	}
	m.dirty[0] = struct{}{}
	return m, nil
}

func (m *Module) setBaseExpression(base *Note, kind bytecode.Kind, dsl string) ([]compile.Warning, error) {
	expr, warnings, err := m.compile.Compile(dsl)
	if err != nil {
		return warnings, err
	}
	if expr.ReferencesBase || len(expr.Refs) > 0 {
		return warnings, ErrBaseNoteMayNotRefer
	}
	base.Exprs[kind] = expr
	if err := m.graph.Register(0, kind, expr); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func (m *Module) markDirtyTransitive(note uint32) {
	m.dirty[note] = struct{}{}
	for _, d := range m.graph.TransitiveDependents(note) {
		m.dirty[d] = struct{}{}
	}
	if note != BaseNoteID {
		return
	}
	// Reads of the base note are not edges of the general graph, so its
	// dependents are found through each expression's ReferencesBase flag.
	for id, n := range m.notes {
		for _, e := range n.Exprs {
			if e.ReferencesBase && id != BaseNoteID {
				m.markDirtyTransitive(id)
				break
			}
		}
	}
}

// SetExpression compiles dsl and installs it as note's kind slot. A
// malformed dsl never fails the call: it falls back to
// the zero expression and the failure surfaces only as a Warning. A
// structural failure — a cycle, or (for the base note) a reference to
// another note — does fail the call and leaves the module unchanged.
func (m *Module) SetExpression(noteID uint32, kind bytecode.Kind, dsl string) ([]compile.Warning, error) {
	if !kind.Valid() {
		return nil, errors.Errorf("reactive: invalid slot kind %v", kind)
	}
	note, ok := m.notes[noteID]
	if !ok {
		return nil, ErrNoteNotFound
	}
	expr, warnings, err := m.compile.Compile(dsl)
	if err != nil {
		return warnings, err
	}
	if noteID == BaseNoteID {
		if expr.ReferencesBase || len(expr.Refs) > 0 {
			return warnings, ErrBaseNoteMayNotRefer
		}
	} else {
		would, err := m.graph.WouldCreateCycle(noteID, expr)
		if err != nil {
			return warnings, err
		}
		if would {
			return warnings, ErrWouldCreateCycle
		}
	}
	note.Exprs[kind] = expr
	if err := m.graph.Register(noteID, kind, expr); err != nil {
		return warnings, err
	}
	m.markDirtyTransitive(noteID)
	m.generation++
	return warnings, nil
}

// AddNote allocates a new note with no expressions set and returns its id.
func (m *Module) AddNote() uint32 {
	id := m.nextID
	m.nextID++
	m.notes[id] = &Note{ID: id}
	m.dirty[id] = struct{}{}
	m.generation++
	return id
}

// RemoveNote deletes note id from the module. The base note (id 0) cannot
// be removed.
func (m *Module) RemoveNote(id uint32) error {
	if id == BaseNoteID {
		return ErrRemoveBaseNote
	}
	if _, ok := m.notes[id]; !ok {
		return ErrNoteNotFound
	}
	delete(m.notes, id)
	m.graph.Remove(id)
	m.cache.removeNote(id)
	delete(m.dirty, id)
	m.generation++
	return nil
}

// Clear removes every note except the base note, preserving the base
// note's expressions and evaluated cache entries.
func (m *Module) Clear() {
	for id := range m.notes {
		if id == BaseNoteID {
			continue
		}
		delete(m.notes, id)
		m.graph.Remove(id)
		m.cache.removeNote(id)
		delete(m.dirty, id)
	}
	m.nextID = 1
	m.generation++
}

// Note returns a copy of the stored note, for read-only inspection.
func (m *Module) Note(id uint32) (Note, bool) {
	n, ok := m.notes[id]
	if !ok {
		return Note{}, false
	}
	return *n, true
}

// NoteIDs returns every note id currently stored, in ascending order.
func (m *Module) NoteIDs() []uint32 {
	ids := make([]uint32, 0, len(m.notes))
	for id := range m.notes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
