// Package unix implements the RSC transport over Unix domain sockets. It
// provides communication with a device (or the simulator) running on the same
// machine.
//
// This package extends the base transport layer with Unix socket-specific
// connectors while inheriting buffering, rollback and framing from the base
// package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners and accepts connections
package unix
