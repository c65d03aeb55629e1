// Package eval implements the stack-machine evaluator that runs compiled
// expression bytecode over exact rationals: one dispatch loop, one switch
// on opcode, an explicit operand stack.
package eval

import (
	"math"

	"github.com/rtonal/core/rational"
)

// Value is an evaluated slot value: either an exact Rational, or — once any
// operation along the way produced an irrational or otherwise inexact
// result — a corrupted floating-point approximation. Corruption propagates:
// any arithmetic operation with a corrupted operand yields a corrupted
// result.
type Value struct {
	Value     rational.Rational
	Corrupted bool
	Float     float64
}

func exact(r rational.Rational) Value {
	return Value{Value: r, Float: r.Float64()}
}

func corrupted(f float64) Value {
	return Value{Corrupted: true, Float: f}
}

func (v Value) add(o Value) Value {
	if v.Corrupted || o.Corrupted {
		return corrupted(v.Float + o.Float)
	}
	return exact(v.Value.Add(o.Value))
}

func (v Value) sub(o Value) Value {
	if v.Corrupted || o.Corrupted {
		return corrupted(v.Float - o.Float)
	}
	return exact(v.Value.Sub(o.Value))
}

func (v Value) mul(o Value) Value {
	if v.Corrupted || o.Corrupted {
		return corrupted(v.Float * o.Float)
	}
	return exact(v.Value.Mul(o.Value))
}

// div returns v / o, and an error if o is an exact zero: division by a
// corrupted (float) zero instead produces a corrupted +/-Inf result, since
// the corrupted path has already abandoned exactness guarantees.
func (v Value) div(o Value) (Value, error) {
	if !o.Corrupted && o.Value.IsZero() {
		return Value{}, ErrDivideByZero
	}
	if v.Corrupted || o.Corrupted {
		return corrupted(v.Float / o.Float), nil
	}
	r, err := v.Value.Div(o.Value)
	if err != nil {
		return Value{}, err
	}
	return exact(r), nil
}

func (v Value) neg() Value {
	if v.Corrupted {
		return corrupted(-v.Float)
	}
	return exact(v.Value.Neg())
}

// pow returns v raised to the power exp, using the exact rational-power rule
// when both operands are exact, falling back to floating point (and marking
// the result corrupted) otherwise.
func (v Value) pow(exp Value) (Value, error) {
	if v.Corrupted || exp.Corrupted {
		return corrupted(math.Pow(v.Float, exp.Float)), nil
	}
	res, err := v.Value.PowRational(exp.Value.Num(), exp.Value.Den())
	if err != nil {
		return Value{}, err
	}
	if res.Corrupted {
		return corrupted(res.Float), nil
	}
	return exact(res.Value), nil
}

// Exact wraps an exact rational as a Value, for collaborators (such as
// reactive's tempo/measure-length inheritance walk) that need to combine
// cached Values with a literal constant.
func Exact(r rational.Rational) Value { return exact(r) }

// Add, Sub, Mul, Div, Neg and Pow expose Value's corruption-propagating
// arithmetic to other packages that need to compose already-evaluated
// Values outside of a bytecode program (e.g. the FindMeasure inheritance
// rule's `(60 / tempo) * beatsPerMeasure`).
func Add(a, b Value) Value         { return a.add(b) }
func Sub(a, b Value) Value         { return a.sub(b) }
func Mul(a, b Value) Value         { return a.mul(b) }
func Div(a, b Value) (Value, error) { return a.div(b) }
func Neg(a Value) Value            { return a.neg() }
func Pow(a, b Value) (Value, error) { return a.pow(b) }
