package compile

import "testing"

// assertRoundTrip compiles src, decompiles the result, recompiles the
// decompiled text, and checks that the bytecode is bytewise identical —
// the round-trip property required of the compiler, regardless of
// whether the decompiled text matches src verbatim.
func assertRoundTrip(t *testing.T, src string) {
	t.Helper()
	e1, warns, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	if len(warns) != 0 {
		t.Fatalf("Compile(%q) warnings: %v", src, warns)
	}
	text, err := Decompile(e1)
	if err != nil {
		t.Fatalf("Decompile(%q) error: %v", src, err)
	}
	e2, warns, err := Compile(text)
	if err != nil {
		t.Fatalf("recompile of %q error: %v", text, err)
	}
	if len(warns) != 0 {
		t.Fatalf("recompile of %q produced warnings: %v", text, warns)
	}
	if string(e1.Code) != string(e2.Code) {
		t.Errorf("round-trip mismatch for %q: decompiled to %q, recompiled code differs", src, text)
	}
}

func TestDecompileRoundTrip(t *testing.T) {
	cases := []string{
		"base.f",
		"[5].t",
		"base.f * 2^(7/12)",
		"1/2 + 1/3",
		"(1/2 + 1/3) * 2",
		"1/2 * (1/3 + 1/4)",
		"2 - (3 - 4)",
		"(2 - 3) - 4",
		"2^(3^4)",
		"(2^3)^4",
		"-base.f",
		"-(-base.f)",
		"tempo(base)",
		"tempo([7])",
		"measure([2])",
		"beat(base)",
		"base.f * tempo([3]) / measure(base)",
	}
	for _, src := range cases {
		assertRoundTrip(t, src)
	}
}

func TestDecompileEmpty(t *testing.T) {
	e, _, err := Compile("")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	text, err := Decompile(e)
	if err != nil {
		t.Fatalf("Decompile error: %v", err)
	}
	if text != "" {
		t.Errorf("got %q, want empty string", text)
	}
}

func TestDecompileParenthesizesSubtractionOnRight(t *testing.T) {
	e, _, err := Compile("2 - (3 - 4)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	text, err := Decompile(e)
	if err != nil {
		t.Fatalf("Decompile error: %v", err)
	}
	if text != "2-(3-4)" {
		t.Errorf("got %q, want %q", text, "2-(3-4)")
	}
}

func TestDecompilePowRightAssociative(t *testing.T) {
	e, _, err := Compile("(2^3)^4")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	text, err := Decompile(e)
	if err != nil {
		t.Fatalf("Decompile error: %v", err)
	}
	if text != "(2^3)^4" {
		t.Errorf("got %q, want %q", text, "(2^3)^4")
	}
}

func TestDecompileBeatExpandsToTempoDivision(t *testing.T) {
	e, _, err := Compile("beat(base)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	text, err := Decompile(e)
	if err != nil {
		t.Fatalf("Decompile error: %v", err)
	}
	if text != "60/tempo(base)" {
		t.Errorf("got %q, want %q", text, "60/tempo(base)")
	}
}
