package compile

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
)

// Precedence tiers used by the decompiler's symbolic stack interpreter to
// decide when a sub-expression needs parenthesizing, matching the grammar
// in the DSL grammar (sum < product < unary/power < atom).
const (
	precAdd   = 1
	precMul   = 2
	precPower = 3 // shared by unary neg and '^', per the grammar's `unary := '-' unary | power`
	precAtom  = 4
)

// dtok is one entry on the decompiler's symbolic stack: the rendered text
// for the sub-expression so far, its outermost precedence (for
// parenthesization), and — for a plain non-negative integer constant — its
// value, needed to recover the note id argument of tempo/measure calls.
type dtok struct {
	text    string
	prec    int
	bareInt *int64
}

// ErrUnbalancedStack is returned when a bytecode stream doesn't leave
// exactly one value on the decompiler's symbolic stack.
var ErrUnbalancedStack = errors.New("compile: unbalanced bytecode stack")

// Decompile renders e's bytecode back to canonical short-DSL text via
// symbolic stack interpretation: each load pushes a token,
// each arithmetic op pops its operands and pushes a parenthesized
// combination. Decompile(Compile(x).Expression) need not reproduce x's
// original surface text (e.g. `beat(n)` decompiles to its `60/tempo(n)`
// expansion, since the compiler normalizes beat away at compile time) but
// recompiling the result reproduces the same bytecode whenever every
// constant in it is an integer. A non-integer constant, which the compiler
// emits only for a decimal literal, is rendered as n/d (parenthesized where
// precedence requires) and recompiles to LoadConst n, LoadConst d, Div: the same value, not the same
// bytecode.
func Decompile(e bytecode.Expression) (string, error) {
	if e.IsEmpty() {
		return "", nil
	}
	ins, err := bytecode.Decode(e.Code)
	if err != nil {
		return "", err
	}
	var stack []dtok
	for _, in := range ins {
		switch in.Op {
		case bytecode.OpLoadConst:
			stack = append(stack, loadConstToken(in.Num, in.Den))
		case bytecode.OpLoadRef:
			stack = append(stack, dtok{text: fmt.Sprintf("[%d].%s", in.NoteID, in.Var), prec: precAtom})
		case bytecode.OpLoadBase:
			stack = append(stack, dtok{text: fmt.Sprintf("base.%s", in.Var), prec: precAtom})
		case bytecode.OpAdd:
			if err := combineBin(&stack, '+', precAdd); err != nil {
				return "", err
			}
		case bytecode.OpSub:
			if err := combineBin(&stack, '-', precAdd); err != nil {
				return "", err
			}
		case bytecode.OpMul:
			if err := combineBin(&stack, '*', precMul); err != nil {
				return "", err
			}
		case bytecode.OpDiv:
			if err := combineBin(&stack, '/', precMul); err != nil {
				return "", err
			}
		case bytecode.OpNeg:
			if len(stack) < 1 {
				return "", ErrUnbalancedStack
			}
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			text := x.text
			if x.prec < precPower {
				text = "(" + text + ")"
			}
			stack = append(stack, dtok{text: "-" + text, prec: precPower})
		case bytecode.OpPow:
			if err := combinePow(&stack); err != nil {
				return "", err
			}
		case bytecode.OpFindTempo:
			if err := combineHelper(&stack, "tempo"); err != nil {
				return "", err
			}
		case bytecode.OpFindMeasure:
			if err := combineHelper(&stack, "measure"); err != nil {
				return "", err
			}
		case bytecode.OpDup:
			if len(stack) < 1 {
				return "", ErrUnbalancedStack
			}
			stack = append(stack, stack[len(stack)-1])
		case bytecode.OpSwap:
			n := len(stack)
			if n < 2 {
				return "", ErrUnbalancedStack
			}
			stack[n-1], stack[n-2] = stack[n-2], stack[n-1]
		default:
			return "", errors.Errorf("compile: opcode %v not supported by decompiler", in.Op)
		}
	}
	if len(stack) != 1 {
		return "", ErrUnbalancedStack
	}
	return stack[0].text, nil
}

func loadConstToken(num, den int32) dtok {
	var text string
	if den == 1 {
		text = fmt.Sprintf("%d", num)
	} else {
		text = fmt.Sprintf("%d/%d", num, den)
	}
	tok := dtok{text: text, prec: precAtom}
	if den != 1 {
		tok.prec = precMul
	}
	if den == 1 && num >= 0 {
		v := int64(num)
		tok.bareInt = &v
	}
	return tok
}

func combineBin(stack *[]dtok, op byte, prec int) error {
	n := len(*stack)
	if n < 2 {
		return ErrUnbalancedStack
	}
	r, l := (*stack)[n-1], (*stack)[n-2]
	*stack = (*stack)[:n-2]
	lt, rt := l.text, r.text
	if l.prec < prec {
		lt = "(" + lt + ")"
	}
	if r.prec <= prec {
		rt = "(" + rt + ")"
	}
	*stack = append(*stack, dtok{text: lt + string(op) + rt, prec: prec})
	return nil
}

func combinePow(stack *[]dtok) error {
	n := len(*stack)
	if n < 2 {
		return ErrUnbalancedStack
	}
	exp, base := (*stack)[n-1], (*stack)[n-2]
	*stack = (*stack)[:n-2]
	bt, et := base.text, exp.text
	if base.prec <= precPower {
		bt = "(" + bt + ")"
	}
	if exp.prec < precPower {
		et = "(" + et + ")"
	}
	*stack = append(*stack, dtok{text: bt + "^" + et, prec: precPower})
	return nil
}

func combineHelper(stack *[]dtok, name string) error {
	n := len(*stack)
	if n < 1 {
		return ErrUnbalancedStack
	}
	x := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	arg := x.text
	if x.bareInt != nil {
		if *x.bareInt == 0 {
			arg = "base"
		} else {
			arg = fmt.Sprintf("[%d]", *x.bareInt)
		}
	}
	*stack = append(*stack, dtok{text: name + "(" + arg + ")", prec: precAtom})
	return nil
}
