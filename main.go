// Package main provides the entry point for vixensim.
// Vixensim is a cycle-level model of the Vixen Dio Pro out-of-order core:
// two SMT threads sharing a renamed, seven-port backend.
//
// For the full CLI, use: go run ./cmd/vixensim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Vixensim - Vixen Dio Pro Core Model")
	fmt.Println("")
	fmt.Println("Usage: vixensim [options] <trace file>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -cycles    Stop after this many cycles")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -rob       Override reorder buffer entries per thread")
	fmt.Println("  -iq        Override issue queue size")
	fmt.Println("  -arbiter   Override writeback arbiter capacity")
	fmt.Println("  -json      Emit the report as JSON")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/vixensim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/vixensim' instead.")
	}
}
