// Package rpc provides a client for RSC style remote service calls: a
// length-prefixed, stateful request/response protocol where every exchange
// starts with a fixed-width command header.
//
// The package is organized into several subpackages:
//
//   - common: Command types, capabilities, configuration structures, the
//     error taxonomy and logging.
//
//   - serializer: Binary codec of the command header and of the command
//     bodies and exception frames.
//
//   - transport: The stateful connection abstraction with pluggable stream
//     implementations (TCP, Unix sockets).
//
//   - client: Command variants, the dispatcher executing them and a session
//     with handle caches and keep-alive.
//
//   - server: A device simulator answering the protocol, used for tests and
//     local development.
package rpc
