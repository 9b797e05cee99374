// Package api defines the wire types of the playground server.
//
// The package performs no I/O. It provides the request and response bodies
// of the run endpoint, the stored run record, run ID generation, and the
// structured error type used by the non-run endpoints.
//
// Core types:
//   - [RunRequest]: body of POST /run
//   - [RunResponse]: body returned by POST /run
//   - [Run]: a recorded compiler invocation
//   - [APIError]: structured error with type, code, param, and message
package api
