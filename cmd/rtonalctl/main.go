package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rtonal/core/bytecode"
	"github.com/rtonal/core/reactive"
)

var (
	inFileName  string
	outFileName string
	disasm      bool
	maxDen      int64
	tolerance   float64
)

func atExit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}

func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func openOutput(name string) (io.Writer, func(), error) {
	if name == "" || name == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func disassembleNote(w io.Writer, id uint32, n reactive.Note) error {
	fmt.Fprintf(w, "note %d:\n", id)
	for _, k := range bytecode.Kinds {
		if n.Exprs[k].IsEmpty() {
			continue
		}
		text, err := bytecode.Disassemble(n.Exprs[k])
		if err != nil {
			return errors.Wrapf(err, "note %d slot %s", id, k)
		}
		fmt.Fprintf(w, "  %s:\n", k)
		for _, line := range splitLines(text) {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func run() error {
	flag.StringVar(&inFileName, "in", "-", "composition JSON input `filename` (- for stdin)")
	flag.StringVar(&outFileName, "out", "-", "output `filename` (- for stdout)")
	flag.BoolVar(&disasm, "disasm", false, "write a bytecode disassembly instead of the composition JSON")
	flag.Int64Var(&maxDen, "maxden", 10000, "maximum denominator used when approximating decimal literals")
	flag.Float64Var(&tolerance, "tolerance", 1e-10, "tolerance used when approximating decimal literals")
	flag.Parse()

	data, err := readInput(inFileName)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}

	m, err := reactive.New(
		reactive.MaxDenominator(maxDen),
		reactive.Tolerance(tolerance),
		reactive.BaseNote("0", "1", "120", "4"),
	)
	if err != nil {
		return errors.Wrap(err, "constructing module")
	}
	if err := m.LoadFromJSON(data); err != nil {
		return errors.Wrap(err, "loading composition")
	}

	out, closeOut, err := openOutput(outFileName)
	if err != nil {
		return errors.Wrap(err, "opening output")
	}
	defer closeOut()

	if disasm {
		base, _ := m.Note(reactive.BaseNoteID)
		if err := disassembleNote(out, reactive.BaseNoteID, base); err != nil {
			return err
		}
		for _, id := range m.NoteIDs() {
			if id == reactive.BaseNoteID {
				continue
			}
			n, _ := m.Note(id)
			if err := disassembleNote(out, id, n); err != nil {
				return err
			}
		}
		return nil
	}

	m.Evaluate()
	evaluated, err := m.CreateJSON()
	if err != nil {
		return errors.Wrap(err, "rendering composition")
	}
	_, err = out.Write(evaluated)
	return err
}

func main() {
	atExit(run())
}
