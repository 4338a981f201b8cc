// Verigraph - Claim verification engine over a multi-dimensional knowledge graph.
//
// Verigraph grounds natural-language claims in a knowledge graph of entities
// positioned on spatial, temporal, taxonomic, scale, and domain dimensions,
// and verifies them through relation checks and spreading activation.
package main

import (
	"fmt"
	"os"

	"github.com/verigraph/verigraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
