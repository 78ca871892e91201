// Package codegen enumerates candidate codes derived from a base pattern.
//
// The base pattern is partitioned into fixed positions and mutable positions
// (ASCII digits and lowercase letters). Mutable positions form a mixed-radix
// odometer: the rightmost mutable position increments fastest, wrapping
// within its character class and carrying one step leftward. Enumeration is
// sequential, duplicate-free, and gap-free over the full space; the
// generator is exhausted when the carry propagates past the leftmost
// mutable position.
package codegen

import (
	"fmt"
	"math/big"
)

// Class is the character class of a mutable position, fixed at Init.
type Class string

const (
	// ClassDigit enumerates '0' through '9'.
	ClassDigit Class = "digit"
	// ClassLetter enumerates 'a' through 'z'.
	ClassLetter Class = "letter"
)

func (c Class) size() int {
	if c == ClassDigit {
		return 10
	}
	return 26
}

func (c Class) first() byte {
	if c == ClassDigit {
		return '0'
	}
	return 'a'
}

func (c Class) last() byte {
	if c == ClassDigit {
		return '9'
	}
	return 'z'
}

// Position is one mutable slot in the pattern.
type Position struct {
	Index int   `json:"index"`
	Class Class `json:"class"`
}

// State is the generator odometer. It holds the pattern, the mutable
// positions identified at Init, and the next candidate to emit. Mutated
// exactly once per Advance; serializable via MarshalState/UnmarshalState so
// an interrupted run resumes at the exact next untested candidate.
type State struct {
	Base      string     `json:"base"`
	Positions []Position `json:"positions"`
	Next      string     `json:"next"`
	Exhausted bool       `json:"exhausted"`
}

// Init builds a State from a base pattern. Every digit or lowercase letter
// in base becomes a mutable position whose class is fixed for the whole
// run; everything else stays fixed verbatim. Mutable positions start at
// their class's first symbol, so the enumeration covers the full
// mixed-radix space exactly once.
func Init(base string) (*State, error) {
	if base == "" {
		return nil, fmt.Errorf("codegen: empty base pattern")
	}

	var positions []Position
	next := []byte(base)
	for i := 0; i < len(base); i++ {
		switch c := base[i]; {
		case c >= '0' && c <= '9':
			positions = append(positions, Position{Index: i, Class: ClassDigit})
			next[i] = '0'
		case c >= 'a' && c <= 'z':
			positions = append(positions, Position{Index: i, Class: ClassLetter})
			next[i] = 'a'
		}
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("codegen: base pattern %q has no digit or lowercase positions", base)
	}

	return &State{
		Base:      base,
		Positions: positions,
		Next:      string(next),
	}, nil
}

// Advance emits the next candidate and steps the odometer once.
// ok is false when the space is exhausted: the previous step's carry
// propagated past the leftmost mutable position. Exhausted is terminal;
// further calls keep returning ok=false.
func (s *State) Advance() (candidate string, ok bool) {
	if s.Exhausted {
		return "", false
	}

	candidate = s.Next

	// Step the odometer: least-significant position is the rightmost
	// mutable one. A wrap resets the position to its first symbol and
	// carries one step left.
	buf := []byte(s.Next)
	carried := true
	for i := len(s.Positions) - 1; i >= 0; i-- {
		pos := s.Positions[i]
		if buf[pos.Index] != pos.Class.last() {
			buf[pos.Index]++
			carried = false
			break
		}
		buf[pos.Index] = pos.Class.first()
	}
	if carried {
		// Carry fell off the leftmost mutable position: every
		// combination has now been emitted.
		s.Exhausted = true
		s.Next = ""
		return candidate, true
	}

	s.Next = string(buf)
	return candidate, true
}

// Total returns the size of the enumeration space: the product of each
// mutable position's alphabet size. big.Int because 16 letter positions
// alone already exceed uint64.
func (s *State) Total() *big.Int {
	total := big.NewInt(1)
	for _, p := range s.Positions {
		total.Mul(total, big.NewInt(int64(p.Class.size())))
	}
	return total
}

// Remaining returns how many candidates Advance can still emit.
func (s *State) Remaining() *big.Int {
	if s.Exhausted {
		return big.NewInt(0)
	}

	// Distance from Next to the all-last combination, inclusive.
	remaining := big.NewInt(1)
	weight := big.NewInt(1)
	for i := len(s.Positions) - 1; i >= 0; i-- {
		pos := s.Positions[i]
		steps := int64(pos.Class.last() - s.Next[pos.Index])
		remaining.Add(remaining, new(big.Int).Mul(weight, big.NewInt(steps)))
		weight.Mul(weight, big.NewInt(int64(pos.Class.size())))
	}
	return remaining
}
