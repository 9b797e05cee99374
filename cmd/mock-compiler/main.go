// Command mock-compiler is a deterministic stand-in for the compii
// compiler, for local development and demos without the real toolchain.
//
// It reads the program file given as its last argument and executes a
// tiny line-oriented language:
//
//	print <text>    write text and a newline to stdout
//	error <text>    write "line N: text" to stderr and exit 1
//	exit <code>     exit with the given status
//	sleep <dur>     pause, e.g. "sleep 2s" (useful for timeout tests)
//	# comment       ignored, as are blank lines
//
// Any other statement is a compile error. "--version" prints the version.
//
// Usage:
//
//	PLAYGROUND_COMPILER_PATH=$(go env GOPATH)/bin/mock-compiler playground
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const version = "mock-compii 1.0.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mock-compiler [flags] <program>")
		os.Exit(2)
	}
	if args[0] == "--version" {
		fmt.Println(version)
		return
	}

	src, err := os.ReadFile(args[len(args)-1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	os.Exit(interpret(string(src), os.Stdout, os.Stderr, time.Sleep))
}

// interpret runs src and returns the process exit status.
func interpret(src string, stdout, stderr io.Writer, sleep func(time.Duration)) int {
	scanner := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for scanner.Scan() {
		line++
		stmt := strings.TrimSpace(scanner.Text())
		if stmt == "" || strings.HasPrefix(stmt, "#") {
			continue
		}

		keyword, arg, _ := strings.Cut(stmt, " ")
		arg = strings.TrimSpace(arg)

		switch keyword {
		case "print":
			fmt.Fprintln(stdout, arg)
		case "error":
			fmt.Fprintf(stderr, "line %d: %s\n", line, arg)
			return 1
		case "exit":
			code, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(stderr, "line %d: exit needs an integer status\n", line)
				return 1
			}
			return code
		case "sleep":
			d, err := time.ParseDuration(arg)
			if err != nil {
				fmt.Fprintf(stderr, "line %d: invalid duration %q\n", line, arg)
				return 1
			}
			sleep(d)
		default:
			fmt.Fprintf(stderr, "line %d: unknown statement %q\n", line, keyword)
			return 1
		}
	}
	return 0
}
