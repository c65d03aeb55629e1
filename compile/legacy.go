package compile

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/rtonal/core/rational"
)

// legacyParser parses the fluent legacy surface:
// module.baseNote / module.getNoteById(n) / new Fraction(n[,d]) as
// primaries, chained with .getVariable('name'), .add/.sub/.mul/.div/.pow(x)
// and .neg(). It reuses the short-DSL tokenizer (lex), since both surfaces
// share the same token alphabet (idents, numbers, strings, punctuation).
type legacyParser struct {
	toks []token
	pos  int
}

func newLegacyParser(toks []token) *legacyParser { return &legacyParser{toks: toks} }

func (p *legacyParser) peek() token { return p.toks[p.pos] }

func (p *legacyParser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *legacyParser) expect(k tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != k {
		return t, errors.Wrapf(ErrParse, "expected %s at %s, got %q", what, t.pos, t.text)
	}
	return p.next(), nil
}

func (p *legacyParser) expectIdent(want string) (token, error) {
	t, err := p.expect(tIdent, want)
	if err != nil {
		return t, err
	}
	if lower(t.text) != want {
		return t, errors.Wrapf(ErrParse, "expected %q at %s, got %q", want, t.pos, t.text)
	}
	return t, nil
}

// parseLegacyExpr parses the full legacy surface grammar from source text.
func parseLegacyExpr(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}
	p := newLegacyParser(toks)
	n, err := p.parseChain()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tEOF {
		return nil, errors.Wrapf(ErrParse, "unexpected trailing input %q at %s", p.peek().text, p.peek().pos)
	}
	return n, nil
}

func (p *legacyParser) parseChain() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tDot {
		p.next()
		methTok, err := p.expect(tIdent, "method name")
		if err != nil {
			return nil, err
		}
		switch lower(methTok.text) {
		case "getvariable":
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			argTok, err := p.expect(tString, "property name string")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			r, ok := n.(ref)
			if !ok {
				return nil, errors.Wrapf(ErrParse, "getVariable called on a non-reference at %s", methTok.pos)
			}
			kind, ok := lookupProp(argTok.text)
			if !ok {
				return nil, errors.Wrapf(ErrUnknownProperty, "%q at %s", argTok.text, argTok.pos)
			}
			r.prop, r.hasProp = kind, true
			n = r
		case "add", "sub", "mul", "div", "pow":
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			arg, err := p.parseChain()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			if lower(methTok.text) == "pow" {
				n = powOp{base: n, exp: arg}
			} else {
				opByte := map[string]byte{"add": '+', "sub": '-', "mul": '*', "div": '/'}[lower(methTok.text)]
				n = binOp{op: opByte, l: n, r: arg}
			}
		case "neg":
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			n = negOp{x: n}
		default:
			return nil, errors.Wrapf(ErrParse, "unknown legacy method %q at %s", methTok.text, methTok.pos)
		}
	}
	return n, nil
}

func (p *legacyParser) parsePrimary() (node, error) {
	t := p.peek()
	if t.kind != tIdent {
		return nil, errors.Wrapf(ErrParse, "unexpected token %q at %s", t.text, t.pos)
	}
	switch lower(t.text) {
	case "new":
		p.next()
		if _, err := p.expectIdent("fraction"); err != nil {
			return nil, err
		}
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return nil, err
		}
		numTok, err := p.expect(tNumber, "numerator")
		if err != nil {
			return nil, err
		}
		num, _ := strconv.ParseInt(numTok.text, 10, 64)
		den := int64(1)
		if p.peek().kind == tComma {
			p.next()
			denTok, err := p.expect(tNumber, "denominator")
			if err != nil {
				return nil, err
			}
			den, _ = strconv.ParseInt(denTok.text, 10, 64)
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		v, err := rational.New(num, den)
		if err != nil {
			v = rational.Zero
		}
		return numLit{v: v}, nil
	case "module":
		p.next()
		if _, err := p.expect(tDot, "'.'"); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(tIdent, "module member")
		if err != nil {
			return nil, err
		}
		switch lower(nameTok.text) {
		case "basenote":
			return ref{base: true}, nil
		case "getnotebyid":
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			idTok, err := p.expect(tNumber, "note id")
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseUint(idTok.text, 10, 16)
			if err != nil {
				return nil, errors.Wrapf(ErrParse, "invalid note id %q at %s", idTok.text, idTok.pos)
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			return ref{noteID: uint16(id)}, nil
		case "findtempo", "findmeasurelength":
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			arg, err := p.parseChain()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			name := "tempo"
			if lower(nameTok.text) == "findmeasurelength" {
				name = "measure"
			}
			return helperCall{name: name, arg: arg}, nil
		default:
			return nil, errors.Wrapf(ErrParse, "unknown module member %q at %s", nameTok.text, nameTok.pos)
		}
	default:
		return nil, errors.Wrapf(ErrParse, "unexpected identifier %q at %s", t.text, t.pos)
	}
}
