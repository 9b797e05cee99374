package api

// RunRequest is the body of POST /run. Code is the program text handed to
// the compiler verbatim. A missing code field decodes to the empty string.
type RunRequest struct {
	Code string `json:"code"`
}

// RunResponse is the body returned by POST /run. Output holds either the
// compiler's standard output or, on failure, its standard error (or a
// description of why the compiler could not be run).
type RunResponse struct {
	Output string `json:"output"`
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run records a single compiler invocation.
type Run struct {
	ID         string    `json:"id"`
	Object     string    `json:"object"`
	Status     RunStatus `json:"status"`
	Code       string    `json:"code"`
	Output     string    `json:"output"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  int64     `json:"created_at"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Succeeded reports whether the compiler ran and exited with status zero.
func (r *Run) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// RunList holds a paginated list of runs.
type RunList struct {
	Object  string `json:"object"`
	Data    []*Run `json:"data"`
	HasMore bool   `json:"has_more"`
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
}
