package codegen

import (
	"encoding/json"
	"fmt"
)

// MarshalState serialises a State to JSON for checkpointing.
func MarshalState(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState deserialises a checkpointed State and validates that it
// still describes a coherent odometer. A restored state's next Advance is
// identical to what the uninterrupted run would have produced.
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("codegen: unmarshal state: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *State) validate() error {
	if s.Base == "" {
		return fmt.Errorf("codegen: state has empty base")
	}
	if len(s.Positions) == 0 {
		return fmt.Errorf("codegen: state has no mutable positions")
	}
	if s.Exhausted {
		return nil
	}
	if len(s.Next) != len(s.Base) {
		return fmt.Errorf("codegen: next candidate length %d != base length %d", len(s.Next), len(s.Base))
	}
	for _, p := range s.Positions {
		if p.Index < 0 || p.Index >= len(s.Base) {
			return fmt.Errorf("codegen: position index %d out of range", p.Index)
		}
		if p.Class != ClassDigit && p.Class != ClassLetter {
			return fmt.Errorf("codegen: unknown class %q at index %d", p.Class, p.Index)
		}
		c := s.Next[p.Index]
		if c < p.Class.first() || c > p.Class.last() {
			return fmt.Errorf("codegen: character %q at index %d outside class %s", c, p.Index, p.Class)
		}
	}
	return nil
}
