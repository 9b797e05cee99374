package runner

import "time"

// Outcome classifies how a compiler run ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the captured outcome of one compiler run.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int // -1 when the process did not exit on its own
	Duration  time.Duration
	QueueWait time.Duration
	Outcome   Outcome
	Err       error
}

// Output returns the text reported to the caller: standard output on
// success; on failure, standard error when it is non-empty and a
// description of the failure otherwise.
func (r *Result) Output() string {
	if r.Err != nil {
		if r.Stderr != "" {
			return r.Stderr
		}
		return r.Err.Error()
	}
	return r.Stdout
}
