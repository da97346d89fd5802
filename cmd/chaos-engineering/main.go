// Command chaos-engineering is the operator-facing entry point for the
// Failure Orchestrator and Probe Pipeline, plus the two subcommands the
// probe Deployment/Job manifests in pkg/probe dispatch into from inside a
// shoot cluster.
//
// Grounded on cmd/warren/main.go's cobra root-command wiring, generalized
// from a single flat command list to the garden-cluster-resolution flow
// every operator subcommand here shares.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
