package server

import (
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
)

// IRSCServerAdapter is the interface for all request adapters of the device simulator.
// It is responsible for answering request frames.
type IRSCServerAdapter interface {
	// Handle answers a request frame of one connection.
	// It takes the connection state, the request and the registry to resolve
	// names against and returns the response frame. Failures are answered
	// with an exception frame, never with a missing response.
	Handle(state *transport.ServerConnState, req serializer.Frame, registry *Registry) (resp serializer.Frame)
}
