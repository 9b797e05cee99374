// Package runner invokes the external compiler against submitted code.
//
// Each call to [Runner.Run] gets its own workspace directory holding a
// single program file. The compiler is started as
//
//	<path> [args...] <workspace>/program<ext>
//
// and its standard output and standard error are captured. The workspace is
// removed as soon as the process has exited, so concurrent runs never see
// each other's input.
//
// The number of concurrently running compiler processes can be bounded, and
// every run can be given a deadline. Neither is required: a zero
// MaxConcurrent or Timeout leaves that dimension unbounded.
package runner
