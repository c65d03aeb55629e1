package compile

import (
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

// node is the common interface for short-DSL and legacy-surface AST nodes.
// The compiler walks a node tree in post-order to emit bytecode (ssec. 4.2).
type node interface{ isNode() }

// numLit is a literal rational constant.
type numLit struct{ v rational.Rational }

// ref is a bare or property-qualified reference to a note: `base`,
// `base.prop`, `[N]`, or `[N].prop`. hasProp is false for the bare forms,
// which are only legal as the argument to a tempo/measure/beat helper call.
type ref struct {
	base    bool
	noteID  uint16
	prop    bytecode.Kind
	hasProp bool
}

// helperCall is tempo(x), measure(x) or beat(x).
type helperCall struct {
	name string // "tempo", "measure", "beat"
	arg  node
}

// binOp is a left-associative binary operator node: +, -, *, /.
type binOp struct {
	op   byte
	l, r node
}

// negOp is unary negation.
type negOp struct{ x node }

// powOp is right-associative exponentiation.
type powOp struct{ base, exp node }

func (numLit) isNode()     {}
func (ref) isNode()        {}
func (helperCall) isNode() {}
func (binOp) isNode()      {}
func (negOp) isNode()      {}
func (powOp) isNode()      {}
