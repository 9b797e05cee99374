package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/compii/playground/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// run. An ID already in the context (set by the HTTP adapter from the
// X-Request-ID header) is kept.
func RequestID() Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Execute(ctx, req)
		})
	}
}

// NewRequestID creates a new unique request ID as a 32-character hex string.
func NewRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
