package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/compii/playground/pkg/debug"
)

// programFileName is the base name of the file handed to the compiler.
const programFileName = "program"

// ErrBusy is returned (wrapped in Result.Err) when no execution slot became
// free within the queue timeout.
var ErrBusy = errors.New("compiler busy")

// Config holds the compiler invocation settings.
type Config struct {
	// Path is the compiler executable. Relative paths are resolved against
	// the server's working directory, bare names through $PATH.
	Path string

	// Args are inserted before the program file path.
	Args []string

	// FileExtension is appended to the program file name (e.g. ".compii").
	FileExtension string

	// WorkDir is the parent directory for per-run workspaces.
	// Empty means os.TempDir().
	WorkDir string

	// Env is appended to the server's environment for the compiler process.
	Env []string

	// Timeout bounds a single compiler run. Zero disables the deadline.
	Timeout time.Duration

	// MaxConcurrent bounds the number of compiler processes running at the
	// same time. Zero means unbounded.
	MaxConcurrent int

	// QueueTimeout bounds how long a run waits for a free slot when
	// MaxConcurrent is reached. Zero waits until the caller's context ends.
	QueueTimeout time.Duration

	// MaxOutputBytes caps each captured stream. Zero keeps everything.
	MaxOutputBytes int
}

// Runner executes the configured compiler. It is safe for concurrent use.
type Runner struct {
	cfg      Config
	slots    *semaphore.Weighted
	inFlight atomic.Int32
}

// New creates a Runner. The compiler binary does not need to exist yet; a
// missing binary is reported per run, in the run's output.
func New(cfg Config) (*Runner, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("compiler path is required")
	}
	if cfg.MaxConcurrent < 0 {
		return nil, fmt.Errorf("max concurrent must be >= 0, got %d", cfg.MaxConcurrent)
	}

	r := &Runner{cfg: cfg}
	if cfg.MaxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return r, nil
}

// Run writes code to a fresh workspace, runs the compiler on it, and
// returns the captured result. Run never returns a nil Result; all failures
// are reported through Result.Err.
func (r *Runner) Run(ctx context.Context, code string) *Result {
	res := &Result{ExitCode: -1, Outcome: OutcomeFailed}

	queued := time.Now()
	release, err := r.acquire(ctx)
	res.QueueWait = time.Since(queued)
	if err != nil {
		res.Err = err
		if ctx.Err() != nil {
			res.Outcome = OutcomeCancelled
		}
		return res
	}
	defer release()

	dir, err := os.MkdirTemp(r.cfg.WorkDir, "run-*")
	if err != nil {
		res.Err = fmt.Errorf("creating workspace: %w", err)
		return res
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			debug.Log("runner", "workspace cleanup failed", "dir", dir, "error", err)
		}
	}()

	programPath := filepath.Join(dir, programFileName+r.cfg.FileExtension)
	if err := os.WriteFile(programPath, []byte(code), 0o644); err != nil {
		res.Err = fmt.Errorf("writing program file: %w", err)
		return res
	}

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.cfg.Args...), programPath)
	cmd := exec.CommandContext(runCtx, r.cfg.Path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	// Children that inherit the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = time.Second

	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	debug.Log("runner", "starting compiler", "path", r.cfg.Path, "args", args, "code_bytes", len(code))

	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case runErr == nil:
		res.Outcome = OutcomeSucceeded
	case ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
		res.Err = fmt.Errorf("execution cancelled: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Outcome = OutcomeTimedOut
		res.Err = fmt.Errorf("execution timed out after %s", r.cfg.Timeout)
	default:
		res.Outcome = OutcomeFailed
		res.Err = runErr
	}

	return res
}

// acquire reserves an execution slot and returns its release function.
func (r *Runner) acquire(ctx context.Context) (func(), error) {
	if r.slots == nil {
		r.inFlight.Add(1)
		return func() { r.inFlight.Add(-1) }, nil
	}

	waitCtx := ctx
	if r.cfg.QueueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.QueueTimeout)
		defer cancel()
	}

	if err := r.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("execution cancelled while queued: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: all %d execution slots in use after waiting %s",
			ErrBusy, r.cfg.MaxConcurrent, r.cfg.QueueTimeout)
	}

	r.inFlight.Add(1)
	return func() {
		r.inFlight.Add(-1)
		r.slots.Release(1)
	}, nil
}

// Load returns the number of compiler runs currently holding a slot.
func (r *Runner) Load() int {
	return int(r.inFlight.Load())
}

// Capacity returns the configured concurrency bound (0 = unbounded).
func (r *Runner) Capacity() int {
	return r.cfg.MaxConcurrent
}

// Path returns the configured compiler path.
func (r *Runner) Path() string {
	return r.cfg.Path
}

// Available reports whether the compiler executable can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.cfg.Path)
	return err == nil
}

// Version runs "<compiler> --version" and returns the first output line,
// or "unknown" when the compiler does not answer.
func (r *Runner) Version(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, r.cfg.Path, "--version").Output()
	if err != nil {
		return "unknown"
	}

	version := strings.TrimSpace(string(output))
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	if version == "" {
		return "unknown"
	}
	return version
}
