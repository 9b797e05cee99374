package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/compii/playground/pkg/api"
)

// Logging returns middleware that emits one structured log entry per run.
// HTTP-level details (method, path, status code) are logged by the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
			start := time.Now()

			run, err := next.Execute(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("code_bytes", len(req.Code)),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "run failed", attrs...)
			case run == nil:
				logger.LogAttrs(ctx, slog.LevelError, "run returned no result", attrs...)
			default:
				attrs = append(attrs,
					slog.String("run_id", run.ID),
					slog.String("status", string(run.Status)),
					slog.Int("exit_code", run.ExitCode),
				)
				level := slog.LevelInfo
				if !run.Succeeded() {
					level = slog.LevelWarn
				}
				logger.LogAttrs(ctx, level, "run completed", attrs...)
			}

			return run, err
		})
	}
}
