// Package transport defines the interfaces of the RSC transport layer. It
// provides the contract between commands, the dispatcher and the concrete
// stream implementations.
//
// The package focuses on:
//   - A blocking, buffered, stateful client connection (IConnection)
//   - A server side transport used by the device simulator
//   - Enabling multiple stream implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IConnection: Send/Flush/Receive primitives, the negotiated capabilities,
//     data tag confirmation markers and Rollback after a failed exchange.
//
//   - IRPCServerTransport: Server side transport that reads request frames and
//     writes the frames returned by the registered ServerHandleFunc.
//
//   - ServerConnState: Per connection state (negotiated capabilities) a server
//     handler keeps between requests.
package transport
