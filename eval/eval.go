package eval

import (
	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

// ErrDivideByZero is returned when an expression divides by an exact zero.
var ErrDivideByZero = errors.New("eval: division by zero")

// ErrMissingReference is returned by a Resolver when a bytecode instruction
// names a note that does not exist.
var ErrMissingReference = errors.New("eval: missing reference")

// ErrStackUnderflow indicates malformed bytecode: an operator executed with
// too few operands on the evaluation stack.
var ErrStackUnderflow = errors.New("eval: stack underflow")

// ErrUnbalancedStack indicates malformed bytecode: more than one value
// remained on the stack after the program ran to completion.
var ErrUnbalancedStack = errors.New("eval: unbalanced stack")

// Resolver supplies the evaluator with everything outside the expression's
// own bytecode: other notes' cached slot values, the base note's slots, and
// the tempo/measure-length inheritance walk. An
// implementation is expected to evaluate a dependency on demand if it is
// not yet cached; the Module guarantees a topological visitation order so
// this never actually recurses in practice.
type Resolver interface {
	Slot(note uint16, kind bytecode.Kind) (Value, error)
	Base(kind bytecode.Kind) (Value, error)
	FindTempo(note uint16) (Value, error)
	FindMeasure(note uint16) (Value, error)
}

// Eval runs e's bytecode to completion against r and returns the resulting
// top-of-stack value. An empty expression evaluates to exact zero.
func Eval(e bytecode.Expression, r Resolver) (Value, error) {
	if e.IsEmpty() {
		return exact(rational.Zero), nil
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		return Value{}, err
	}
	var stack []Value
	pop := func() (Value, error) {
		n := len(stack)
		if n == 0 {
			return Value{}, ErrStackUnderflow
		}
		v := stack[n-1]
		stack = stack[:n-1]
		return v, nil
	}
	for _, in := range ins {
		switch in.Op {
		case bytecode.OpLoadConst:
			rat, err := rational.New(int64(in.Num), int64(in.Den))
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, exact(rat))
		case bytecode.OpLoadRef:
			v, err := r.Slot(in.NoteID, in.Var)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v)
		case bytecode.OpLoadBase:
			v, err := r.Base(in.Var)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v)
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			rhs, err := pop()
			if err != nil {
				return Value{}, err
			}
			lhs, err := pop()
			if err != nil {
				return Value{}, err
			}
			var res Value
			switch in.Op {
			case bytecode.OpAdd:
				res = lhs.add(rhs)
			case bytecode.OpSub:
				res = lhs.sub(rhs)
			case bytecode.OpMul:
				res = lhs.mul(rhs)
			case bytecode.OpDiv:
				res, err = lhs.div(rhs)
				if err != nil {
					return Value{}, err
				}
			}
			stack = append(stack, res)
		case bytecode.OpNeg:
			x, err := pop()
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, x.neg())
		case bytecode.OpPow:
			exp, err := pop()
			if err != nil {
				return Value{}, err
			}
			base, err := pop()
			if err != nil {
				return Value{}, err
			}
			res, err := base.pow(exp)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, res)
		case bytecode.OpFindTempo, bytecode.OpFindMeasure:
			ref, err := pop()
			if err != nil {
				return Value{}, err
			}
			note := uint16(ref.Value.Num())
			var v Value
			if in.Op == bytecode.OpFindTempo {
				v, err = r.FindTempo(note)
			} else {
				v, err = r.FindMeasure(note)
			}
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v)
		case bytecode.OpDup:
			v, err := pop()
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v, v)
		case bytecode.OpSwap:
			b, err := pop()
			if err != nil {
				return Value{}, err
			}
			a, err := pop()
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, b, a)
		default:
			return Value{}, errors.Errorf("eval: opcode %v not implemented", in.Op)
		}
	}
	if len(stack) != 1 {
		return Value{}, ErrUnbalancedStack
	}
	return stack[0], nil
}
