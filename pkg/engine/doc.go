// Package engine implements transport.Executor on top of the compiler
// runner. For every submission it assigns a run ID, registers the run for
// cancellation, invokes the compiler, records metrics and persists the run
// when a store is configured. Storage and cancellation are optional and
// nil-safe.
package engine
