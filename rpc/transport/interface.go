package transport

import (
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
)

// --------------------------------------------------------------------------
// Client Connection
// --------------------------------------------------------------------------

// IConnection is the stateful byte stream a command exchange runs on.
// Implementations are not safe for concurrent use, callers serialize access.
type IConnection interface {
	// IsConnected reports whether the underlying stream is open
	IsConnected() bool

	// Capabilities returns the currently negotiated capabilities
	Capabilities() common.Capabilities
	// ApplyCapabilities replaces the negotiated capabilities.
	// Only a successful Connect exchange calls this.
	ApplyCapabilities(caps common.Capabilities)

	// Send buffers data for writing
	Send(data []byte) error
	// Flush forces buffered data onto the wire
	Flush() error
	// Receive blocks until exactly n bytes were read
	Receive(n int) ([]byte, error)

	// WriteConfirmation appends the data tag end marker if data tagging is negotiated
	WriteConfirmation() error
	// ConsumeConfirmation reads and checks the data tag end marker if data tagging is negotiated
	ConsumeConfirmation() error

	// SetDeadline bounds all I/O of the current exchange, the zero time removes the bound
	SetDeadline(t time.Time) error

	// Rollback discards any state of a failed exchange. The stream is closed
	// if an I/O call failed or a response was read only partly. Calling it
	// without a failed exchange, or twice in a row, is a no-op.
	Rollback()
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerConnState is the per connection state a server handler keeps
type ServerConnState struct {
	// RemoteAddr of the client
	RemoteAddr string
	// Capabilities negotiated by the last Connect request
	Capabilities common.Capabilities
	// Connected is true between a Connect and a Disconnect request
	Connected bool
}

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport for every request frame and returns the
// response frame. The handler may update state, the transport applies the
// updated capabilities to the frames that follow the response.
type ServerHandleFunc func(state *ServerConnState, req serializer.Frame) (resp serializer.Frame)

// IRPCServerTransport is the interface for the server side transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called for every request frame
	RegisterHandler(handler ServerHandleFunc)
	// Listen creates the listener without accepting connections yet
	Listen(config common.ServerConfig) error
	// Serve accepts connections until Close is called, it blocks
	Serve() error
	// Addr returns the address the transport listens on, empty before Listen
	Addr() string
	// Close stops accepting connections and closes the listener
	Close() error
}
