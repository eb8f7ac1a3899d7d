// Package cmd implements the command-line interface for the hashcons intern
// store. The tools create a store from flags or environment variables and
// exercise it in-process.
//
// The package is organized into several subpackages:
//
//   - bench: Throughput of the intern operations under different workloads
//   - stats: Populates a store, optionally collects, and prints its state and metrics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See hashcons -help for a list of all commands.
package cmd
