package codegen

import (
	"math/big"
	"testing"
)

func TestInitPartitionsPositions(t *testing.T) {
	s, err := Init("A-b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Positions) != 2 {
		t.Fatalf("positions: got %d, want 2", len(s.Positions))
	}
	if s.Positions[0].Index != 2 || s.Positions[0].Class != ClassLetter {
		t.Errorf("position 0: got %+v, want index 2 letter", s.Positions[0])
	}
	if s.Positions[1].Index != 3 || s.Positions[1].Class != ClassDigit {
		t.Errorf("position 1: got %+v, want index 3 digit", s.Positions[1])
	}
	// Fixed characters stay verbatim, mutable ones start at class first.
	if s.Next != "A-a0" {
		t.Errorf("next: got %q, want %q", s.Next, "A-a0")
	}
}

func TestInitRejectsFixedOnly(t *testing.T) {
	if _, err := Init("ABC-"); err == nil {
		t.Error("expected error for base with no mutable positions")
	}
	if _, err := Init(""); err == nil {
		t.Error("expected error for empty base")
	}
}

func TestAdvanceRightmostFastest(t *testing.T) {
	// "Xb1": index 1 letter, index 2 digit. Digit increments first.
	s, err := Init("Xb1")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Xa0", "Xa1", "Xa2", "Xa3", "Xa4", "Xa5", "Xa6", "Xa7", "Xa8", "Xa9", "Xb0", "Xb1"}
	for i, w := range want {
		got, ok := s.Advance()
		if !ok {
			t.Fatalf("advance %d: unexpected exhaustion", i)
		}
		if got != w {
			t.Fatalf("advance %d: got %q, want %q", i, got, w)
		}
	}
}

func TestAdvanceCarryAcrossClasses(t *testing.T) {
	// Digit wraps 9->0 and carries into the letter to its left; the digit
	// never leaves its class.
	s := &State{
		Base:      "a9",
		Positions: []Position{{Index: 0, Class: ClassLetter}, {Index: 1, Class: ClassDigit}},
		Next:      "a9",
	}

	got, ok := s.Advance()
	if !ok || got != "a9" {
		t.Fatalf("first advance: got %q ok=%v", got, ok)
	}
	got, ok = s.Advance()
	if !ok || got != "b0" {
		t.Fatalf("carry advance: got %q ok=%v, want \"b0\"", got, ok)
	}
}

func TestExhaustionCountAndUniqueness(t *testing.T) {
	// 2 digits + 1 letter = 10*26*10 = 2600 combinations.
	s, err := Init("8c3")
	if err != nil {
		t.Fatal(err)
	}

	if s.Total().Cmp(big.NewInt(2600)) != 0 {
		t.Fatalf("total: got %s, want 2600", s.Total())
	}

	seen := make(map[string]bool)
	n := 0
	for {
		c, ok := s.Advance()
		if !ok {
			break
		}
		if seen[c] {
			t.Fatalf("duplicate candidate %q at advance %d", c, n)
		}
		seen[c] = true
		n++
		if n > 2600 {
			t.Fatal("generator did not exhaust")
		}
	}

	if n != 2600 {
		t.Fatalf("candidates before exhaustion: got %d, want 2600", n)
	}
}

func TestExhaustedIsTerminal(t *testing.T) {
	s, err := Init("z")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 26; i++ {
		if _, ok := s.Advance(); !ok {
			t.Fatalf("exhausted early at %d", i)
		}
	}
	for i := 0; i < 3; i++ {
		if c, ok := s.Advance(); ok {
			t.Fatalf("advance after exhaustion returned %q", c)
		}
	}
}

func TestSerializeRoundtripResumes(t *testing.T) {
	reference, err := Init("k7m")
	if err != nil {
		t.Fatal(err)
	}

	s, err := Init("k7m")
	if err != nil {
		t.Fatal(err)
	}

	// Advance both N steps, checkpoint one, restore, and verify the
	// restored generator continues exactly where the reference does.
	const n = 137
	for i := 0; i < n; i++ {
		reference.Advance()
		s.Advance()
	}

	data, err := MarshalState(s)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := UnmarshalState(data)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 500; i++ {
		wantC, wantOK := reference.Advance()
		gotC, gotOK := restored.Advance()
		if gotC != wantC || gotOK != wantOK {
			t.Fatalf("step %d after restore: got (%q,%v), want (%q,%v)", i, gotC, gotOK, wantC, wantOK)
		}
	}
}

func TestSerializeExhaustedState(t *testing.T) {
	s, err := Init("3")
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, ok := s.Advance(); !ok {
			break
		}
	}

	data, err := MarshalState(s)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := UnmarshalState(data)
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := restored.Advance(); ok {
		t.Fatalf("restored exhausted state advanced to %q", c)
	}
}

func TestUnmarshalRejectsCorruptState(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty base", `{"base":"","positions":[{"index":0,"class":"digit"}],"next":"1"}`},
		{"no positions", `{"base":"1","positions":[],"next":"1"}`},
		{"length mismatch", `{"base":"12","positions":[{"index":0,"class":"digit"}],"next":"123"}`},
		{"index out of range", `{"base":"1","positions":[{"index":5,"class":"digit"}],"next":"1"}`},
		{"bad class", `{"base":"1","positions":[{"index":0,"class":"hex"}],"next":"1"}`},
		{"char outside class", `{"base":"1","positions":[{"index":0,"class":"digit"}],"next":"x"}`},
		{"not json", `{{{`},
	}
	for _, tc := range cases {
		if _, err := UnmarshalState([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestRemaining(t *testing.T) {
	s, err := Init("a1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Remaining().Cmp(big.NewInt(260)) != 0 {
		t.Fatalf("remaining at start: got %s, want 260", s.Remaining())
	}

	for i := 0; i < 100; i++ {
		s.Advance()
	}
	if s.Remaining().Cmp(big.NewInt(160)) != 0 {
		t.Fatalf("remaining after 100: got %s, want 160", s.Remaining())
	}

	for {
		if _, ok := s.Advance(); !ok {
			break
		}
	}
	if s.Remaining().Sign() != 0 {
		t.Fatalf("remaining after exhaustion: got %s, want 0", s.Remaining())
	}
}

func TestTotalBigPattern(t *testing.T) {
	// 16 digits and 16 letters, the shape of a 32-char hex-like code.
	s, err := Init("881a0eb9570ae493b60b39e71eeaa03a")
	if err != nil {
		t.Fatal(err)
	}

	// Count classes directly instead of hand-deriving the digit/letter split.
	digits, letters := 0, 0
	for _, p := range s.Positions {
		if p.Class == ClassDigit {
			digits++
		} else {
			letters++
		}
	}
	check := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	check.Mul(check, new(big.Int).Exp(big.NewInt(26), big.NewInt(int64(letters)), nil))

	if s.Total().Cmp(check) != 0 {
		t.Fatalf("total: got %s, want %s", s.Total(), check)
	}
	if !s.Total().IsUint64() {
		// 32 mutable positions overflow uint64; big.Int is required.
		t.Log("total exceeds uint64 as expected:", s.Total())
	}
}
