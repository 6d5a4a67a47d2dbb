// Package cmd implements the command-line interface of dRSC. It provides a
// hierarchical command structure for running the device simulator and for
// talking to RSC devices as a client.
//
// The package is organized into several subpackages:
//
//   - rsc: Client commands (connect, provider, service, invoke, perf)
//   - serve: Commands for starting and configuring the device simulator
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drsc -help for a list of all commands.
package cmd
