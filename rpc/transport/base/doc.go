// Package base provides the foundation of the RSC transport layer,
// implementing buffering, framing and failure recovery independent of the
// specific network protocol (TCP, Unix sockets, etc.). It is extended with
// protocol-specific connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations (dial, listen, socket options).
//
//   - Connection: The client side stream. It owns a bufio reader/writer pair,
//     the capabilities negotiated by the Connect exchange and the rollback
//     logic. After an I/O failure (timeout, short read, broken pipe) the stream
//     position is undefined, Rollback then closes the connection. After any
//     other failure it only drops buffered bytes so the connection stays
//     usable.
//
//   - serverTransport: Accepts connections and hands every request frame to
//     the registered handler, one exchange at a time per connection.
//
// Frame Format:
//
//	[command header (serializer.HeaderSize bytes)] [body] [0xFF if data tagging]
//
// The data tag end marker is present when data tagging was negotiated before
// the frame was sent, Connect exchanges therefore never carry it.
//
// Thread Safety:
//
//	Connection is not safe for concurrent use. Callers serialize exchanges,
//	client.Session does so with its own mutex. The server transport handles
//	each connection in its own goroutine.
package base
