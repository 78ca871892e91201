// Package probe drives the enumeration loop: it advances the code
// generator, loads each candidate URL in the managed browser session,
// classifies the page, and persists the result together with the generator
// checkpoint. One Runner owns one browser session and one run.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hazyhaar/couponscan/codegen"
	"github.com/hazyhaar/couponscan/idgen"
	"github.com/hazyhaar/couponscan/probe/internal/browser"
	"github.com/hazyhaar/couponscan/probe/internal/classify"
	"github.com/hazyhaar/couponscan/probe/internal/config"
	"github.com/hazyhaar/couponscan/store"
)

// RunState is the Runner lifecycle phase.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateDraining  RunState = "draining"
	StateExhausted RunState = "exhausted"
	StateStopped   RunState = "stopped"
)

// Runner owns one enumeration run.
type Runner struct {
	cfg    *config.Config
	gen    *codegen.State
	st     *store.Store
	rules  classify.Rules
	logger *slog.Logger
	runID  string

	// Browser session hooks. Wired to a browser.Manager by New; tests
	// swap them for fakes.
	startBrowser func(ctx context.Context) error
	closeBrowser func() error
	visit        func(ctx context.Context, pageURL string, timeout time.Duration) (*browser.VisitResult, error)
	recycle      func(ctx context.Context) error

	// Snapshot fields read by the status endpoint from other goroutines.
	// The generator itself is touched only by the run loop.
	mu        sync.Mutex
	state     RunState
	current   string
	tested    int64
	exhausted bool
	remaining string
	total     string
}

// New builds a Runner from configuration. When the store already holds a
// checkpoint for cfg.RunID, the generator resumes from it; otherwise a
// fresh odometer starts from the base pattern.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	runID := cfg.RunID
	if runID == "" {
		runID = idgen.Prefixed("run_", idgen.Default)()
	}

	gen, err := resumeOrInit(cfg, st, runID, logger)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:          cfg.Browser.Remote,
		Headless:           cfg.Browser.Headless == nil || *cfg.Browser.Headless,
		XvfbDisplay:        cfg.Browser.XvfbDisplay,
		ResourceBlocking:   cfg.Browser.ResourceBlocking,
		CaptureScreenshots: cfg.Browser.ScreenshotsDir != "",
		Logger:             logger,
	})

	r := &Runner{
		cfg: cfg,
		gen: gen,
		st:  st,
		rules: classify.Rules{
			AcceptIndicators: cfg.Classify.AcceptIndicators,
			RejectIndicators: cfg.Classify.RejectIndicators,
			MinMatches:       cfg.Classify.MinMatches,
		},
		logger:       logger,
		runID:        runID,
		startBrowser: mgr.Start,
		closeBrowser: mgr.Close,
		visit:        mgr.Visit,
		recycle:      mgr.Recycle,
		state:        StateIdle,
	}
	r.total = gen.Total().String()
	r.remaining = gen.Remaining().String()
	return r, nil
}

func resumeOrInit(cfg *config.Config, st *store.Store, runID string, logger *slog.Logger) (*codegen.State, error) {
	state, base, ok, err := st.Checkpoint(context.Background(), runID)
	if err != nil {
		return nil, fmt.Errorf("probe: load checkpoint: %w", err)
	}
	if !ok {
		return codegen.Init(cfg.BasePattern)
	}
	if base != cfg.BasePattern {
		return nil, fmt.Errorf("probe: run %s was checkpointed with base %q, config has %q; pick a new run_id",
			runID, base, cfg.BasePattern)
	}

	gen, err := codegen.UnmarshalState(state)
	if err != nil {
		return nil, fmt.Errorf("probe: restore checkpoint: %w", err)
	}
	logger.Info("probe: resuming from checkpoint",
		"run_id", runID, "remaining", gen.Remaining().String())
	return gen, nil
}

// RunID returns the run identifier.
func (r *Runner) RunID() string { return r.runID }

// Run executes the enumeration loop until the generator is exhausted or
// ctx is cancelled. Cancellation is checked only between probes: an
// in-flight probe completes or times out before the drain. The browser is
// released on every exit path. A persistence failure is fatal: the run
// stops with the last saved checkpoint intact rather than risk skipping or
// repeating candidates.
func (r *Runner) Run(ctx context.Context) error {
	r.setState(StateRunning)
	defer r.setState(StateStopped)

	if err := r.startBrowser(ctx); err != nil {
		return fmt.Errorf("probe: start browser: %w", err)
	}
	defer r.closeBrowser()

	r.logger.Info("probe: run started",
		"run_id", r.runID,
		"base", r.cfg.BasePattern,
		"total_combinations", r.gen.Total().String(),
		"remaining", r.gen.Remaining().String())

	for {
		if ctx.Err() != nil {
			r.setState(StateDraining)
			r.logger.Info("probe: interrupted, draining", "run_id", r.runID)
			return r.finish(ctx)
		}

		candidate, ok := r.gen.Advance()
		if !ok {
			r.setState(StateExhausted)
			r.mu.Lock()
			r.exhausted = true
			r.mu.Unlock()
			r.logger.Info("probe: enumeration space exhausted", "run_id", r.runID)
			return r.finish(ctx)
		}
		r.setCurrent(candidate)

		res := r.probeOnce(ctx, candidate)

		if err := r.persist(ctx, res); err != nil {
			return err
		}
		r.bumpTested()

		r.logger.Info("probe: candidate tested",
			"run_id", r.runID,
			"candidate", candidate,
			"classification", res.Classification,
			"attempts", res.Attempts)

		// Inter-probe pacing; cancellation here is caught at the top of
		// the loop.
		_ = sleepCtx(ctx, r.cfg.Probe.Delay)
	}
}

// probeOnce tests one candidate with bounded retries. A probe that keeps
// failing yields an inconclusive record instead of halting the run.
func (r *Runner) probeOnce(ctx context.Context, candidate string) *store.Result {
	pageURL := r.buildURL(candidate)
	res := &store.Result{
		RunID:     r.runID,
		Candidate: candidate,
		URL:       pageURL,
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Probe.MaxRetries; attempt++ {
		res.Attempts = attempt

		// The probe itself is never cancelled mid-flight; its only bound
		// is the configured timeout.
		visited, err := r.visit(context.WithoutCancel(ctx), pageURL, r.cfg.Probe.Timeout)
		if err == nil {
			verdict, reason := classify.Classify(visited.HTML, r.rules)
			res.Classification = string(verdict)
			res.Reason = reason
			res.DurationMs = time.Since(start).Milliseconds()

			if verdict == classify.Accepted {
				r.logger.Info("probe: candidate ACCEPTED", "run_id", r.runID, "candidate", candidate)
				r.saveScreenshot(candidate, visited.Screenshot)
			}
			return res
		}

		lastErr = err
		r.logger.Warn("probe: visit failed",
			"candidate", candidate, "attempt", attempt, "error", err)

		if attempt == r.cfg.Probe.MaxRetries || ctx.Err() != nil {
			break
		}
		if err := sleepCtx(ctx, r.cfg.Probe.RetryDelay); err != nil {
			break
		}
		// The session may have died with the probe; relaunch before the
		// reattempt so a crashed browser doesn't burn the remaining tries.
		if err := r.recycle(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("probe: session recycle failed", "error", err)
		}
	}

	res.Classification = string(classify.Inconclusive)
	res.Reason = lastErr.Error()
	res.DurationMs = time.Since(start).Milliseconds()
	return res
}

// persist appends the result and the post-advance generator state in one
// transaction. Persistence uses a non-cancellable context so a drain can
// still save its final probe.
func (r *Runner) persist(ctx context.Context, res *store.Result) error {
	state, err := codegen.MarshalState(r.gen)
	if err != nil {
		return fmt.Errorf("probe: marshal generator state: %w", err)
	}
	if err := r.st.Append(context.WithoutCancel(ctx), res, r.cfg.BasePattern, state); err != nil {
		return fmt.Errorf("probe: persist result for %s: %w", res.Candidate, err)
	}
	return nil
}

func (r *Runner) finish(ctx context.Context) error {
	sum, err := r.st.Summary(context.WithoutCancel(ctx), r.runID)
	if err != nil {
		r.logger.Warn("probe: summary query failed", "error", err)
		return nil
	}
	r.logger.Info("probe: run summary",
		"run_id", r.runID,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"inconclusive", sum.Inconclusive,
		"total", sum.Total)
	return nil
}

func (r *Runner) buildURL(candidate string) string {
	u, err := url.Parse(r.cfg.Target.BaseURL)
	if err != nil {
		// Validated at config load; unreachable in practice.
		return r.cfg.Target.BaseURL
	}
	q := u.Query()
	q.Set(r.cfg.Target.CouponParam, candidate)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *Runner) saveScreenshot(candidate string, png []byte) {
	dir := r.cfg.Browser.ScreenshotsDir
	if dir == "" || len(png) == 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("probe: screenshot dir", "error", err)
		return
	}
	path := filepath.Join(dir, candidate+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		r.logger.Warn("probe: write screenshot", "path", path, "error", err)
	}
}

func (r *Runner) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) setCurrent(c string) {
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}

func (r *Runner) bumpTested() {
	remaining := r.gen.Remaining().String()
	r.mu.Lock()
	r.tested++
	r.remaining = remaining
	r.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
