// Package transport defines the executor contract and middleware chain that
// sit between the protocol adapters (HTTP, MCP) and the run engine.
//
// # Executor
//
// Executor runs one code submission and returns the recorded run. Adapters
// decode requests into api.RunRequest, call Execute, and render the run in
// their own wire format. The HTTP adapter renders every outcome as
// {"output": ...} with status 200; the MCP adapter renders it as tool content.
//
// # Middleware
//
// The middleware chain wraps an Executor with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog.
//
// # In-flight runs
//
// InFlightRegistry maps run IDs to cancel functions so a running compiler
// can be stopped from another request.
package transport
