package probe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/couponscan/store"
)

// Status is a point-in-time snapshot of the run, served by the progress
// endpoint and usable programmatically.
type Status struct {
	RunID     string        `json:"run_id"`
	State     RunState      `json:"state"`
	Exhausted bool          `json:"exhausted"`
	Current   string        `json:"current,omitempty"`
	Tested    int64         `json:"tested"`
	Remaining string        `json:"remaining"`
	Total     string        `json:"total_combinations"`
	Summary   store.Summary `json:"summary"`
}

// Status assembles the current snapshot. The summary comes from the store,
// so it reflects persisted results only.
func (r *Runner) Status(ctx context.Context) Status {
	r.mu.Lock()
	s := Status{
		RunID:     r.runID,
		State:     r.state,
		Exhausted: r.exhausted,
		Current:   r.current,
		Tested:    r.tested,
		Remaining: r.remaining,
		Total:     r.total,
	}
	r.mu.Unlock()

	if sum, err := r.st.Summary(ctx, r.runID); err == nil {
		s.Summary = sum
	}
	return s
}

// StatusHandler returns the HTTP router for the progress endpoint:
//
//	GET /status   current run snapshot
//	GET /accepted candidates accepted so far
func (r *Runner) StatusHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, r.Status(req.Context()))
	})

	mux.Get("/accepted", func(w http.ResponseWriter, req *http.Request) {
		accepted, err := r.st.Accepted(req.Context(), r.runID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"run_id": r.runID, "accepted": accepted})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
