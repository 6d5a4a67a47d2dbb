// Package common provides core data structures and utilities shared across
// the RSC client, transport and device simulator. It defines the protocol
// vocabulary, configuration structures and the error taxonomy used by the
// other packages.
//
// The package focuses on:
//   - Command type definitions and the request/confirmation pairing
//   - Negotiated connection capabilities
//   - Configuration structures for client sessions and the device simulator
//   - Error taxonomy (classified with github.com/cockroachdb/errors)
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - CommandType: Enumeration of all header command types. Every request
//     type has exactly one confirmation type (Confirmation()), CmdTException
//     replaces the confirmation when the peer reports a failure.
//
//   - Capabilities: Remoting version, data tagging and datagramming flags
//     negotiated by the Connect exchange.
//
//   - ClientConfig / ServerConfig: Configuration of sessions and of the
//     simulator, including transport tuning and logging.
//
//   - Errors: ErrNotConnected, ErrEncoding, ErrDecoding, ErrConnection,
//     ErrTimeout and friends are sentinels meant for errors.Is. Peer failures
//     are reported as *ServerException or *RemotingFatalError.
//
//   - Logger: One process-wide logger per component tag (rsc/transport,
//     rsc/client, rsc/server, rsc/cli) with consistent formatting.
package common
