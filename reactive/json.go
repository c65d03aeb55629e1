package reactive

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/compile"
)

// jsonSlots holds the six optional DSL-text slots shared by the base note
// and regular notes in the JSON document.
type jsonSlots struct {
	StartTime       string `json:"startTime,omitempty"`
	Duration        string `json:"duration,omitempty"`
	Frequency       string `json:"frequency,omitempty"`
	Tempo           string `json:"tempo,omitempty"`
	BeatsPerMeasure string `json:"beatsPerMeasure,omitempty"`
	MeasureLength   string `json:"measureLength,omitempty"`
}

type jsonNote struct {
	ID uint32 `json:"id"`
	jsonSlots
	Color      string `json:"color,omitempty"`
	Instrument string `json:"instrument,omitempty"`
}

type jsonDoc struct {
	BaseNote jsonSlots  `json:"baseNote"`
	Notes    []jsonNote `json:"notes"`
}

func getSlotField(js jsonSlots, k bytecode.Kind) string {
	switch k {
	case bytecode.StartTime:
		return js.StartTime
	case bytecode.Duration:
		return js.Duration
	case bytecode.Frequency:
		return js.Frequency
	case bytecode.Tempo:
		return js.Tempo
	case bytecode.BeatsPerMeasure:
		return js.BeatsPerMeasure
	case bytecode.MeasureLength:
		return js.MeasureLength
	default:
		return ""
	}
}

func setSlotField(js *jsonSlots, k bytecode.Kind, v string) {
	switch k {
	case bytecode.StartTime:
		js.StartTime = v
	case bytecode.Duration:
		js.Duration = v
	case bytecode.Frequency:
		js.Frequency = v
	case bytecode.Tempo:
		js.Tempo = v
	case bytecode.BeatsPerMeasure:
		js.BeatsPerMeasure = v
	case bytecode.MeasureLength:
		js.MeasureLength = v
	}
}

func slotsToJSON(n *Note) jsonSlots {
	var js jsonSlots
	for _, k := range bytecode.Kinds {
		if n.Exprs[k].IsEmpty() {
			continue
		}
		text, err := compile.Decompile(n.Exprs[k])
		if err != nil {
			text = n.Exprs[k].Source
		}
		setSlotField(&js, k, text)
	}
	return js
}

// CreateJSON renders the module as a JSON document: the canonical
// short-DSL text for every defined slot, empty slots omitted,
// non-expression properties passed through verbatim.
func (m *Module) CreateJSON() ([]byte, error) {
	doc := jsonDoc{BaseNote: slotsToJSON(m.notes[BaseNoteID])}
	for _, id := range m.NoteIDs() {
		if id == BaseNoteID {
			continue
		}
		n := m.notes[id]
		doc.Notes = append(doc.Notes, jsonNote{
			ID:         id,
			jsonSlots:  slotsToJSON(n),
			Color:      n.Color,
			Instrument: n.Instrument,
		})
	}
	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "reactive: marshal module")
	}
	return b, nil
}

// legacyFunctionText reports whether s looks like a JS-style function
// literal rather than a DSL expression.
func legacyFunctionText(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "function")
}

// legacyReturnBody extracts the trailing `return <expr>;` statement's
// expression text out of a JS-style function literal body. Obscure shapes
// that don't match this bounded heuristic report ok == false, and the
// caller degrades to a zero expression rather than treating it as a fatal
// error — intentional degradation for an obscure legacy shape.
var legacyReturnPattern = regexp.MustCompile(`(?s)return\s+(.+?)\s*;?\s*\}\s*$`)

func legacyReturnBody(s string) (string, bool) {
	m := legacyReturnPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// compileSlotText compiles one slot's raw JSON text, transparently
// unwrapping the legacy function-literal embedding first when present.
func (m *Module) compileSlotText(raw string) (bytecode.Expression, []compile.Warning) {
	text := raw
	if legacyFunctionText(raw) {
		body, ok := legacyReturnBody(raw)
		if !ok {
			return bytecode.Expression{Source: raw}, []compile.Warning{
				{Message: "legacy function body did not match the expected return-expression shape: " + raw},
			}
		}
		text = body
	}
	expr, warnings, _ := m.compile.Compile(text)
	return expr, warnings
}

// LoadFromJSON replaces the module's contents with the given JSON
// document, accepting either surface syntax (and the legacy
// function-literal embedding) for every slot, with the same
// fallback-to-zero behavior on parse failure that SetExpression uses. The
// base note's required slots and every note's dependencies are registered
// in one batch, and every note is marked dirty, before any evaluation runs,
// so the subsequent Evaluate's topological sort already respects the
// fully-loaded graph. A
// base note slot that references another note or itself fails the whole
// call with ErrBaseNoteMayNotRefer, exactly as SetExpression does for the
// same invariant, and leaves the module untouched.
func (m *Module) LoadFromJSON(data []byte) error {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "reactive: invalid json")
	}

	var baseExprs [bytecode.NumKinds]bytecode.Expression
	for _, k := range bytecode.Kinds {
		text := getSlotField(doc.BaseNote, k)
		if text == "" {
			continue
		}
		expr, _ := m.compileSlotText(text)
		if expr.ReferencesBase || len(expr.Refs) > 0 {
			return ErrBaseNoteMayNotRefer
		}
		baseExprs[k] = expr
	}

	m.Clear()
	base := &Note{ID: BaseNoteID, Exprs: baseExprs}
	m.notes[BaseNoteID] = base
	m.cache.removeNote(BaseNoteID)

	maxID := uint32(0)
	for _, jn := range doc.Notes {
		if jn.ID == BaseNoteID {
			continue
		}
		n := &Note{ID: jn.ID, Color: jn.Color, Instrument: jn.Instrument}
		for _, k := range bytecode.Kinds {
			text := getSlotField(jn.jsonSlots, k)
			if text == "" {
				continue
			}
			expr, _ := m.compileSlotText(text)
			n.Exprs[k] = expr
		}
		m.notes[jn.ID] = n
		if jn.ID > maxID {
			maxID = jn.ID
		}
	}

	for id, n := range m.notes {
		for _, k := range bytecode.Kinds {
			if n.Exprs[k].IsEmpty() {
				continue
			}
			if err := m.graph.Register(id, k, n.Exprs[k]); err != nil {
				return errors.Wrapf(err, "reactive: loading note %d slot %s", id, k)
			}
		}
		m.dirty[id] = struct{}{}
	}
	m.nextID = maxID + 1
	m.generation++
	return nil
}
