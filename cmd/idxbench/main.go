// Command idxbench micro-benchmarks key-value indexes.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/idxbench/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
