package store_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/couponscan/codegen"
	"github.com/hazyhaar/couponscan/dbopen"
	"github.com/hazyhaar/couponscan/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return store.New(db)
}

func TestAppendAndSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	results := []store.Result{
		{RunID: "run-1", Candidate: "ab10", Classification: "rejected"},
		{RunID: "run-1", Candidate: "ab11", Classification: "accepted"},
		{RunID: "run-1", Candidate: "ab12", Classification: "inconclusive", Reason: "timeout", Attempts: 3},
		{RunID: "run-1", Candidate: "ab13", Classification: "rejected"},
		{RunID: "run-2", Candidate: "zz99", Classification: "accepted"},
	}
	for i := range results {
		if err := s.Append(ctx, &results[i], "ab12", []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
		if results[i].ID == "" {
			t.Fatal("Append did not assign a result ID")
		}
	}

	sum, err := s.Summary(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Accepted != 1 || sum.Rejected != 2 || sum.Inconclusive != 1 || sum.Total != 4 {
		t.Fatalf("summary = %+v", sum)
	}

	accepted, err := s.Accepted(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0] != "ab11" {
		t.Fatalf("accepted = %v, want [ab11]", accepted)
	}
}

func TestCheckpointRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := codegen.Init("x7")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 42; i++ {
		gen.Advance()
	}
	state, err := codegen.MarshalState(gen)
	if err != nil {
		t.Fatal(err)
	}

	res := store.Result{RunID: "run-1", Candidate: "x7", Classification: "rejected"}
	if err := s.Append(ctx, &res, "x7", state); err != nil {
		t.Fatal(err)
	}

	loaded, base, ok, err := s.Checkpoint(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("checkpoint missing")
	}
	if base != "x7" {
		t.Fatalf("base = %q, want x7", base)
	}

	restored, err := codegen.UnmarshalState(loaded)
	if err != nil {
		t.Fatal(err)
	}
	wantNext, wantOK := gen.Advance()
	gotNext, gotOK := restored.Advance()
	if gotNext != wantNext || gotOK != wantOK {
		t.Fatalf("restored advance = (%q,%v), want (%q,%v)", gotNext, gotOK, wantNext, wantOK)
	}
}

func TestCheckpointLatestWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, state := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		res := store.Result{RunID: "run-1", Candidate: string(rune('a' + i)), Classification: "rejected"}
		if err := s.Append(ctx, &res, "base", []byte(state)); err != nil {
			t.Fatal(err)
		}
	}

	state, _, ok, err := s.Checkpoint(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("checkpoint: ok=%v err=%v", ok, err)
	}
	if string(state) != `{"n":3}` {
		t.Fatalf("state = %s, want latest", state)
	}
}

func TestCheckpointMissingRun(t *testing.T) {
	s := newTestStore(t)

	_, _, ok, err := s.Checkpoint(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no checkpoint")
	}
}
