// Package compile turns DSL source text into bytecode.Expression values
// (the compiler) and renders bytecode.Expression back to canonical DSL text
// (the decompiler). Two surface syntaxes compile to identical bytecode: the
// short DSL and the legacy fluent form.
package compile

import (
	"strings"
	"text/scanner"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tNumber
	tIdent
	tPlus
	tMinus
	tStar
	tSlash
	tCaret
	tLParen
	tRParen
	tLBracket
	tRBracket
	tDot
	tComma
	tString
)

type token struct {
	kind tokenKind
	text string
	pos  scanner.Position
}

// lex tokenizes src using a text/scanner.Scanner in its default identifier
// mode (ScanIdents | ScanInts | ScanFloats), with errors collected
// explicitly instead of printed, and quoted legacy-surface string literals
// (which can hold more than the single rune text/scanner's own quote modes
// assume) scanned by hand.
func lex(src string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	s.Whitespace = 1<<'\t' | 1<<'\n' | 1<<'\r' | 1<<' '

	var errs []string
	s.Error = func(sc *scanner.Scanner, msg string) {
		errs = append(errs, msg)
	}

	var toks []token
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		pos := s.Position
		if !pos.IsValid() {
			pos = s.Pos()
		}
		text := s.TokenText()
		switch tok {
		case scanner.Ident:
			toks = append(toks, token{tIdent, text, pos})
		case scanner.Int, scanner.Float:
			toks = append(toks, token{tNumber, text, pos})
		case '+':
			toks = append(toks, token{tPlus, text, pos})
		case '-':
			toks = append(toks, token{tMinus, text, pos})
		case '*':
			toks = append(toks, token{tStar, text, pos})
		case '/':
			toks = append(toks, token{tSlash, text, pos})
		case '^':
			toks = append(toks, token{tCaret, text, pos})
		case '(':
			toks = append(toks, token{tLParen, text, pos})
		case ')':
			toks = append(toks, token{tRParen, text, pos})
		case '[':
			toks = append(toks, token{tLBracket, text, pos})
		case ']':
			toks = append(toks, token{tRBracket, text, pos})
		case '.':
			toks = append(toks, token{tDot, text, pos})
		case ',':
			toks = append(toks, token{tComma, text, pos})
		case '\'', '"':
			// Legacy-surface string literal, e.g. getVariable('frequency').
			// text/scanner's own string/char modes assume Go syntax (a char
			// literal holds exactly one rune); the legacy DSL needs
			// arbitrary-length single- or double-quoted identifiers, so the
			// body is collected by hand.
			quote := tok
			var body []rune
			for {
				r := s.Next()
				if r == scanner.EOF {
					errs = append(errs, errors.Errorf("unterminated string starting at %s", pos).Error())
					break
				}
				if r == quote {
					break
				}
				body = append(body, r)
			}
			toks = append(toks, token{tString, string(body), pos})
		default:
			errs = append(errs, errors.Errorf("unexpected character %q at %s", text, pos).Error())
		}
	}
	toks = append(toks, token{kind: tEOF, pos: s.Position})
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return toks, nil
}
