// Command bfi is a standalone BF interpreter: the test oracle used to run
// this compiler's own emitted output end to end.
package main

import (
	"fmt"
	"os"
	"strconv"

	"nbfc/internal/bfi"
)

func usage(program string) {
	fmt.Fprintf(os.Stderr, "Usage: %s [--nocomments|-nc] <filename> [max_steps]\n", program)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --nocomments, -nc    Don't strip comments (parts of code after a # character)")
	fmt.Fprintln(os.Stderr, "  max_steps            Maximum number of steps to execute (default: 1000000)")
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	stripComments := true
	var filename string
	maxSteps := uint64(bfi.DefaultMaxSteps)

	for _, arg := range args[1:] {
		switch {
		case arg == "--nocomments" || arg == "-nc":
			stripComments = false
		case filename == "":
			filename = arg
		default:
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error: Invalid max_steps value:", arg)
				usage(args[0])
				return 1
			}
			maxSteps = n
		}
	}

	if filename == "" {
		usage(args[0])
		return 1
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: Could not open file", filename)
		return 1
	}

	code := string(raw)
	if stripComments {
		code = bfi.StripComments(code)
	}

	interp, err := bfi.New(code, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	if err := interp.Run(maxSteps); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
