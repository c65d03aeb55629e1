// Package rational implements closed arithmetic over the rationals (Q),
// always kept in reduced normal form with a strictly positive denominator.
//
// Every operation except Div, Pow and PowRational is total. Div (and Pow
// or PowRational with a negative exponent on a zero base) reports division
// by zero as an error rather than panicking; PowRational reports inexact
// results as a corrupted float rather than panicking or silently truncating.
package rational

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrDivideByZero is returned by Div (and by Pow for a negative exponent
// applied to a zero base) when the divisor is zero.
var ErrDivideByZero = errors.New("rational: division by zero")

// Rational is an immutable, always-reduced fraction num/den with den > 0.
// The sign of the value is carried entirely by num.
type Rational struct {
	num int64
	den int64
}

// Zero is the rational 0/1.
var Zero = Rational{num: 0, den: 1}

// One is the rational 1/1.
var One = Rational{num: 1, den: 1}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// New builds a reduced Rational from a numerator and denominator. It errors
// if den is zero; a negative denominator is normalized by moving its sign
// to the numerator.
func New(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, ErrDivideByZero
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Zero, nil
	}
	g := gcd(num, den)
	return Rational{num: num / g, den: den / g}, nil
}

// MustNew is like New but panics on error. Intended for constant literals
// known at compile time to be valid.
func MustNew(num, den int64) Rational {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// FromInt returns the rational n/1.
func FromInt(n int64) Rational {
	return Rational{num: n, den: 1}
}

// Num returns the (signed) numerator of the reduced fraction.
func (r Rational) Num() int64 { return r.num }

// Den returns the (strictly positive) denominator of the reduced fraction.
func (r Rational) Den() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// IsZero reports whether r is exactly zero.
func (r Rational) IsZero() bool { return r.num == 0 }

// IsInt reports whether r has an integral value.
func (r Rational) IsInt() bool { return r.Den() == 1 }

// Sign returns -1, 0 or 1 according to the sign of r.
func (r Rational) Sign() int {
	switch {
	case r.num < 0:
		return -1
	case r.num > 0:
		return 1
	default:
		return 0
	}
}

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	rd, od := r.Den(), o.Den()
	num := r.num*od + o.num*rd
	den := rd * od
	res, _ := New(num, den)
	return res
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	return r.Add(o.Neg())
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	res, _ := New(r.num*o.num, r.Den()*o.Den())
	return res
}

// Div returns r / o. It errors with ErrDivideByZero if o is zero.
func (r Rational) Div(o Rational) (Rational, error) {
	if o.num == 0 {
		return Rational{}, ErrDivideByZero
	}
	return New(r.num*o.Den(), r.Den()*o.num)
}

// Neg returns -r.
func (r Rational) Neg() Rational {
	return Rational{num: -r.num, den: r.Den()}
}

// Pow returns r raised to the integer power n. A negative exponent applied
// to a zero base errors with ErrDivideByZero.
func (r Rational) Pow(n int64) (Rational, error) {
	if n == 0 {
		return One, nil
	}
	if r.IsZero() {
		if n < 0 {
			return Rational{}, ErrDivideByZero
		}
		return Zero, nil
	}
	neg := n < 0
	if neg {
		n = -n
	}
	num, den := int64(1), int64(1)
	bn, bd := r.num, r.Den()
	for n > 0 {
		if n&1 == 1 {
			num *= bn
			den *= bd
		}
		bn *= bn
		bd *= bd
		n >>= 1
	}
	if neg {
		num, den = den, num
	}
	return New(num, den)
}

// intNthRoot returns the integer n-th root of a non-negative x if x is a
// perfect n-th power, and whether such a root exists.
func intNthRoot(x, n int64) (int64, bool) {
	if x < 0 {
		return 0, false
	}
	if x == 0 {
		return 0, true
	}
	if n == 1 {
		return x, true
	}
	guess := int64(math.Round(math.Pow(float64(x), 1/float64(n))))
	for _, c := range []int64{guess - 1, guess, guess + 1, guess + 2} {
		if c <= 0 {
			continue
		}
		p := int64(1)
		overflow := false
		for i := int64(0); i < n; i++ {
			if p > x/c+1 {
				overflow = true
				break
			}
			p *= c
			if p > x {
				overflow = true
				break
			}
		}
		if !overflow && p == x {
			return c, true
		}
	}
	return 0, false
}

// PowResult is the outcome of raising a Rational to a rational power: either
// an exact Rational, or a corrupted (irrational) floating-point value.
type PowResult struct {
	Value     Rational
	Corrupted bool
	Float     float64
}

// PowRational returns r^(num/den). The result is exact (Corrupted == false)
// when the reduced exponent is integral, or when r is a perfect
// den-th-power rational; otherwise it is reported as a corrupted float.
func (r Rational) PowRational(num, den int64) (PowResult, error) {
	if den == 0 {
		return PowResult{}, ErrDivideByZero
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(num, den)
	if g != 0 {
		num, den = num/g, den/g
	}
	if den == 1 {
		v, err := r.Pow(num)
		if err != nil {
			return PowResult{}, err
		}
		return PowResult{Value: v}, nil
	}
	if r.num == 0 {
		if num < 0 {
			return PowResult{}, ErrDivideByZero
		}
		return PowResult{Value: Zero}, nil
	}
	if r.num < 0 {
		// even root of a negative base: not representable as a real rational.
		f := math.Pow(r.Float64(), float64(num)/float64(den))
		return PowResult{Corrupted: true, Float: f}, nil
	}
	rn, rd := r.num, r.Den()
	rootN, okN := intNthRoot(rn, den)
	rootD, okD := intNthRoot(rd, den)
	if okN && okD {
		base := Rational{num: rootN, den: rootD}
		v, err := base.Pow(num)
		if err != nil {
			return PowResult{}, err
		}
		return PowResult{Value: v}, nil
	}
	f := math.Pow(r.Float64(), float64(num)/float64(den))
	return PowResult{Corrupted: true, Float: f}, nil
}

// Float64 converts r to its nearest double-precision approximation.
func (r Rational) Float64() float64 {
	return float64(r.num) / float64(r.Den())
}

// Cmp compares r and o, returning -1, 0 or 1.
func (r Rational) Cmp(o Rational) int {
	lhs := r.num * o.Den()
	rhs := o.num * r.Den()
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

// Equal reports structural (post-reduction) equality.
func (r Rational) Equal(o Rational) bool {
	return r.num == o.num && r.Den() == o.Den()
}

// String renders r as "num" when integral, or "num/den" otherwise.
func (r Rational) String() string {
	if r.Den() == 1 {
		return fmt.Sprintf("%d", r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.Den())
}

// fastDenominators covers the common denominators the composition DSL produces
// by hand (halves, thirds, quarters, fifths, sixths, eighths), tried before
// falling back to the general continued-fraction approximation.
var fastDenominators = [...]int64{2, 3, 4, 5, 6, 8}

const (
	maxApproxDenominator = 10000
	approxTolerance      = 1e-10
)

// Approximator converts floats to rationals bounded by a maximum
// denominator and a tolerance, via a continued-fraction expansion. The
// zero value is not valid; use DefaultApproximator or NewApproximator.
type Approximator struct {
	MaxDenominator int64
	Tolerance      float64
}

// DefaultApproximator bounds the denominator at 10000 and the tolerance at
// 1e-10, the values FromFloat64 uses.
var DefaultApproximator = Approximator{MaxDenominator: maxApproxDenominator, Tolerance: approxTolerance}

// NewApproximator returns an Approximator with the given bounds.
func NewApproximator(maxDenominator int64, tolerance float64) Approximator {
	return Approximator{MaxDenominator: maxDenominator, Tolerance: tolerance}
}

// FromFloat64 approximates f as a Rational under a's bounds via a
// continued-fraction expansion. A handful of common denominators (halves,
// thirds, quarters, fifths, sixths, eighths) are tried first as a fast
// path.
func (a Approximator) FromFloat64(f float64) Rational {
	if f == math.Trunc(f) {
		return FromInt(int64(f))
	}
	for _, d := range fastDenominators {
		n := f * float64(d)
		rn := math.Round(n)
		if math.Abs(n-rn) < a.Tolerance*float64(d) {
			res, err := New(int64(rn), d)
			if err == nil {
				return res
			}
		}
	}
	return a.continuedFractionApprox(f)
}

// FromFloat64 approximates f as a Rational bounded by a maximum denominator
// of 10000 and a tolerance of 1e-10, via DefaultApproximator.
func FromFloat64(f float64) Rational {
	return DefaultApproximator.FromFloat64(f)
}

// continuedFractionApprox implements the standard continued-fraction best
// rational approximation algorithm, stopping once the denominator would
// exceed a.MaxDenominator or the approximation is within a.Tolerance.
func (a Approximator) continuedFractionApprox(f float64) Rational {
	neg := f < 0
	if neg {
		f = -f
	}
	h0, h1 := int64(0), int64(1)
	k0, k1 := int64(1), int64(0)
	x := f
	for i := 0; i < 64; i++ {
		aTerm := int64(math.Floor(x))
		h2 := aTerm*h1 + h0
		k2 := aTerm*k1 + k0
		if k2 > a.MaxDenominator {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		approx := float64(h1) / float64(k1)
		if math.Abs(approx-f) < a.Tolerance {
			break
		}
		frac := x - float64(aTerm)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}
	if k1 == 0 {
		k1 = 1
	}
	if neg {
		h1 = -h1
	}
	res, err := New(h1, k1)
	if err != nil {
		return Zero
	}
	return res
}
