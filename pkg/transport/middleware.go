package transport

import "context"

// Middleware wraps an Executor to add cross-cutting behavior.
// The first middleware in a chain is the outermost wrapper.
type Middleware func(Executor) Executor

// Chain composes multiple middleware into a single middleware.
// Chain(a, b, c) produces a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Executor) Executor {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

type runIDKeyType struct{}

var runIDKey = runIDKeyType{}

// RunIDFromContext returns a run ID chosen by the adapter before execution,
// or an empty string if the executor should assign one.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRunID returns a new context carrying a preassigned run ID.
// The HTTP adapter uses it to announce the ID in a header before the
// compiler finishes, so the run can be cancelled while in flight.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}
