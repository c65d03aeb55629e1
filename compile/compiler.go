package compile

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

// Warning records a non-fatal issue encountered while compiling an
// expression. A malformed expression never fails the
// surrounding Module operation: it falls back to a zero expression and
// records a Warning instead.
type Warning struct {
	Message string
}

// Compile parses src (auto-detecting the short DSL or the legacy fluent
// surface) and emits bytecode. A malformed input never
// returns a non-nil error: it falls back to a zero-valued Expression whose
// Source is still the verbatim input text, with the parse failure recorded
// as a Warning. The error return exists so a future genuinely unrecoverable
// condition can surface without an API break; none of the cases
// implemented here produce one.
func Compile(src string) (bytecode.Expression, []Warning, error) {
	return CompileWithApprox(src, rational.DefaultApproximator)
}

// CompileWithApprox is Compile with a caller-supplied float-literal
// approximation policy, used by a Cache configured via
// reactive.MaxDenominator/reactive.Tolerance.
func CompileWithApprox(src string, approx rational.Approximator) (bytecode.Expression, []Warning, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return bytecode.Expression{Source: src}, nil, nil
	}

	if n, err := parseDSLWithApprox(src, approx); err == nil {
		return emitOrFallback(n, src)
	}

	if n, err := parseLegacyExpr(src); err == nil {
		return emitOrFallback(n, src)
	}

	return bytecode.Expression{Source: src}, []Warning{{Message: "could not parse expression, falling back to zero: " + src}}, nil
}

func emitOrFallback(n node, src string) (bytecode.Expression, []Warning, error) {
	b := bytecode.NewBuilder()
	if err := emitNode(b, n); err != nil {
		return bytecode.Expression{Source: src}, []Warning{{Message: err.Error()}}, nil
	}
	return b.Build(src), nil, nil
}

// ErrBareRefNotAllowed is wrapped when a bare `base` or `[N]` reference
// (with no property selector) is used anywhere other than as the sole
// argument to a tempo/measure/beat helper call.
var ErrBareRefNotAllowed = errors.New("compile: bare reference requires a property, e.g. base.f or [5].t")

func emitNode(b *bytecode.Builder, n node) error {
	switch v := n.(type) {
	case numLit:
		return b.LoadConst(v.v.Num(), v.v.Den())
	case ref:
		if !v.hasProp {
			return errors.Wrap(ErrBareRefNotAllowed, "")
		}
		if v.base {
			b.LoadBase(v.prop)
		} else {
			b.LoadRef(v.noteID, v.prop)
		}
		return nil
	case helperCall:
		return emitHelper(b, v)
	case binOp:
		if err := emitNode(b, v.l); err != nil {
			return err
		}
		if err := emitNode(b, v.r); err != nil {
			return err
		}
		switch v.op {
		case '+':
			b.Op(bytecode.OpAdd)
		case '-':
			b.Op(bytecode.OpSub)
		case '*':
			b.Op(bytecode.OpMul)
		case '/':
			b.Op(bytecode.OpDiv)
		default:
			return errors.Errorf("unknown binary operator %q", v.op)
		}
		return nil
	case negOp:
		if err := emitNode(b, v.x); err != nil {
			return err
		}
		b.Op(bytecode.OpNeg)
		return nil
	case powOp:
		if err := emitNode(b, v.base); err != nil {
			return err
		}
		if err := emitNode(b, v.exp); err != nil {
			return err
		}
		b.Op(bytecode.OpPow)
		return nil
	default:
		return errors.Errorf("compile: unhandled node type %T", n)
	}
}

// emitHelper compiles tempo(x)/measure(x)/beat(x). x must be a bare note
// reference (`base` or `[N]` with no property): the helper's argument
// denotes the note's identity, not an evaluated value, so the compiler
// pushes the note id itself as a plain LoadConst and records the dependency
// directly, without emitting a LoadRef/LoadBase for it (the evaluator's
// "FindTempo/FindMeasure pop a ref, not a value").
func emitHelper(b *bytecode.Builder, h helperCall) error {
	r, ok := h.arg.(ref)
	if !ok || r.hasProp {
		return errors.Errorf("compile: %s(...) argument must be a bare note reference (base or [N])", h.name)
	}
	var id uint16
	if r.base {
		b.MarkReferencesBase()
	} else {
		id = r.noteID
		b.AddRef(id)
	}

	switch h.name {
	case "tempo":
		if err := b.LoadConst(int64(id), 1); err != nil {
			return err
		}
		b.Op(bytecode.OpFindTempo)
	case "measure":
		if err := b.LoadConst(int64(id), 1); err != nil {
			return err
		}
		b.Op(bytecode.OpFindMeasure)
	case "beat":
		// beat(x) normalizes to 60/tempo(x).
		if err := b.LoadConst(60, 1); err != nil {
			return err
		}
		if err := b.LoadConst(int64(id), 1); err != nil {
			return err
		}
		b.Op(bytecode.OpFindTempo)
		b.Op(bytecode.OpDiv)
	default:
		return errors.Errorf("compile: unknown helper %q", h.name)
	}
	return nil
}
