package compile

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/rational"
)

// ErrParse is wrapped around every short-DSL parse failure.
var ErrParse = errors.New("compile: parse error")

// ErrUnknownProperty is wrapped around references to an unrecognized
// property shortcut.
var ErrUnknownProperty = errors.New("compile: unknown property")

var propNames = map[string]bytecode.Kind{
	"f": bytecode.Frequency, "freq": bytecode.Frequency, "frequency": bytecode.Frequency,
	"t": bytecode.StartTime, "s": bytecode.StartTime, "start": bytecode.StartTime, "starttime": bytecode.StartTime,
	"d": bytecode.Duration, "dur": bytecode.Duration, "duration": bytecode.Duration,
	"tempo": bytecode.Tempo,
	"bpm":   bytecode.BeatsPerMeasure, "beatspermeasure": bytecode.BeatsPerMeasure,
	"ml": bytecode.MeasureLength, "measurelength": bytecode.MeasureLength,
}

func lookupProp(name string) (bytecode.Kind, bool) {
	k, ok := propNames[lower(name)]
	return k, ok
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// parser is a recursive-descent parser for the short DSL grammar (spec
// ssec. 6.3): sum -> product -> unary -> power -> atom.
type parser struct {
	toks   []token
	pos    int
	approx rational.Approximator
}

func newParser(toks []token, approx rational.Approximator) *parser {
	return &parser{toks: toks, approx: approx}
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != k {
		return t, errors.Wrapf(ErrParse, "expected %s at %s, got %q", what, t.pos, t.text)
	}
	return p.next(), nil
}

// parseDSL parses the full short-DSL expression grammar from source text,
// approximating float literals under rational.DefaultApproximator.
func parseDSL(src string) (node, error) {
	return parseDSLWithApprox(src, rational.DefaultApproximator)
}

// parseDSLWithApprox is parseDSL with a caller-supplied float-literal
// approximation policy (reactive.MaxDenominator/Tolerance options).
func parseDSLWithApprox(src string, approx rational.Approximator) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}
	p := newParser(toks, approx)
	n, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tEOF {
		return nil, errors.Wrapf(ErrParse, "unexpected trailing input %q at %s", p.peek().text, p.peek().pos)
	}
	return n, nil
}

func (p *parser) parseSum() (node, error) {
	l, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tPlus && t.kind != tMinus {
			return l, nil
		}
		p.next()
		r, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		op := byte('+')
		if t.kind == tMinus {
			op = '-'
		}
		l = binOp{op: op, l: l, r: r}
	}
}

func (p *parser) parseProduct() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tStar && t.kind != tSlash {
			return l, nil
		}
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := byte('*')
		if t.kind == tSlash {
			op = '/'
		}
		l = binOp{op: op, l: l, r: r}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tMinus {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negOp{x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tCaret {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return powOp{base: base, exp: exp}, nil
	}
	return base, nil
}

func (p *parser) parseAtom() (node, error) {
	t := p.peek()
	switch t.kind {
	case tNumber:
		p.next()
		return numLit{v: parseNumberLiteral(t.text, p.approx)}, nil
	case tLParen:
		p.next()
		n, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil
	case tLBracket:
		p.next()
		numTok, err := p.expect(tNumber, "note id")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBracket, "']'"); err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(numTok.text, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "invalid note id %q at %s", numTok.text, numTok.pos)
		}
		r := ref{noteID: uint16(id)}
		if p.peek().kind == tDot {
			p.next()
			propTok, err := p.expect(tIdent, "property name")
			if err != nil {
				return nil, err
			}
			kind, ok := lookupProp(propTok.text)
			if !ok {
				return nil, errors.Wrapf(ErrUnknownProperty, "%q at %s", propTok.text, propTok.pos)
			}
			r.prop, r.hasProp = kind, true
		}
		return r, nil
	case tIdent:
		switch lower(t.text) {
		case "base":
			p.next()
			r := ref{base: true}
			if p.peek().kind == tDot {
				p.next()
				propTok, err := p.expect(tIdent, "property name")
				if err != nil {
					return nil, err
				}
				kind, ok := lookupProp(propTok.text)
				if !ok {
					return nil, errors.Wrapf(ErrUnknownProperty, "%q at %s", propTok.text, propTok.pos)
				}
				r.prop, r.hasProp = kind, true
			}
			return r, nil
		case "tempo", "measure", "beat":
			name := lower(t.text)
			p.next()
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			arg, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			return helperCall{name: name, arg: arg}, nil
		default:
			return nil, errors.Wrapf(ErrParse, "unexpected identifier %q at %s", t.text, t.pos)
		}
	default:
		return nil, errors.Wrapf(ErrParse, "unexpected token %q at %s", t.text, t.pos)
	}
}

func parseNumberLiteral(text string, approx rational.Approximator) rational.Rational {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return rational.FromInt(n)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return rational.Zero
	}
	return approx.FromFloat64(f)
}
