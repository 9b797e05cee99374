package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/compii/playground/pkg/api"
)

// Recovery returns middleware that catches panics in the executor and
// converts them to server errors. The server keeps accepting requests
// after a panic is recovered.
func Recovery() Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (run *api.Run, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic during run",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					run = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Execute(ctx, req)
		})
	}
}
