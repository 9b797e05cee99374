package transport

import (
	"context"

	"github.com/compii/playground/pkg/api"
)

// Executor runs a single code submission through the compiler. A returned
// run describes the compiler outcome, including failures of the compiler
// itself. A non-nil error means the run could not be attempted or recorded
// at all (for example a recovered panic).
type Executor interface {
	Execute(ctx context.Context, req *api.RunRequest) (*api.Run, error)
}

// ExecutorFunc is an adapter that allows using an ordinary function
// as an Executor.
type ExecutorFunc func(ctx context.Context, req *api.RunRequest) (*api.Run, error)

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
	return f(ctx, req)
}
