package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
		if len(id) != 36 {
			t.Fatalf("ID %q is not a canonical UUID", id)
		}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("res_", Default)
	id := gen()
	if !strings.HasPrefix(id, "res_") {
		t.Fatalf("ID %q missing prefix", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("ID %q has unexpected length", id)
	}
}
