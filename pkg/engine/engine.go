package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/observability"
	"github.com/compii/playground/pkg/runner"
	"github.com/compii/playground/pkg/storage"
	"github.com/compii/playground/pkg/transport"
)

// Runner executes code with the external compiler. *runner.Runner
// implements it.
type Runner interface {
	Run(ctx context.Context, code string) *runner.Result
}

// Engine turns run requests into compiler invocations and run records.
type Engine struct {
	runner   Runner
	store    storage.RunStore
	inflight *transport.InFlightRegistry
	cfg      Config
}

var _ transport.Executor = (*Engine)(nil)

// New creates a new Engine. The runner must not be nil. The store and the
// in-flight registry may be nil, disabling run history and cancellation.
func New(r Runner, store storage.RunStore, inflight *transport.InFlightRegistry, cfg Config) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("engine: runner must not be nil")
	}
	return &Engine{
		runner:   r,
		store:    store,
		inflight: inflight,
		cfg:      cfg,
	}, nil
}

// Execute runs req.Code through the compiler. Compiler failures are part
// of the returned run, never an error.
func (e *Engine) Execute(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
	id := transport.RunIDFromContext(ctx)
	if id == "" {
		id = api.NewRunID()
	}
	createdAt := time.Now().Unix()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if e.inflight != nil {
		e.inflight.Register(id, storage.GetOwner(ctx), cancel)
		defer e.inflight.Remove(id)
	}

	observability.RunsInFlight.Inc()
	defer observability.RunsInFlight.Dec()

	debug.Trace("runner", "submitting code", "run_id", id, "code", debug.Truncate(req.Code, 2048))

	res := e.runner.Run(runCtx, req.Code)

	run := &api.Run{
		ID:         id,
		Object:     "run",
		Status:     statusFromOutcome(res.Outcome),
		Code:       req.Code,
		Output:     res.Output(),
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  createdAt,
		RequestID:  transport.RequestIDFromContext(ctx),
	}

	observability.RecordRun(string(res.Outcome), res.Duration, res.QueueWait)
	if errors.Is(res.Err, runner.ErrBusy) {
		slog.Warn("compiler queue full", "run_id", id, "queue_wait", res.QueueWait)
	}

	e.save(ctx, run)
	return run, nil
}

// save persists the run. Failures are logged and never reach the caller,
// whose response is already determined by the compiler outcome.
func (e *Engine) save(ctx context.Context, run *api.Run) {
	if e.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.saveTimeout())
	defer cancel()

	if err := e.store.SaveRun(saveCtx, run); err != nil {
		slog.Warn("failed to save run", "run_id", run.ID, "error", err)
		return
	}
	debug.Log("storage", "run stored", "run_id", run.ID, "owner", storage.GetOwner(ctx))
}

func statusFromOutcome(o runner.Outcome) api.RunStatus {
	switch o {
	case runner.OutcomeSucceeded:
		return api.RunStatusSucceeded
	case runner.OutcomeTimedOut:
		return api.RunStatusTimedOut
	case runner.OutcomeCancelled:
		return api.RunStatusCancelled
	default:
		return api.RunStatusFailed
	}
}
