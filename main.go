// Causact - Bayesian DAG builder and NumPyro model compiler.
//
// Causact declares generative models as directed acyclic graphs,
// compiles them into NumPyro programs, and manages posterior draws.
package main

import (
	"fmt"
	"os"

	"github.com/vishalbelsare/causact/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
