package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Command Type Definition
// --------------------------------------------------------------------------

// CommandType identifies the kind of exchange a CommandHeader starts.
// Request types are always odd and their confirmation is the next value.
type CommandType uint16

// String returns the string representation of a CommandType.
func (t CommandType) String() string {
	switch t {
	case CmdTConnectRequest:
		return "connect"
	case CmdTConnectConfirmation:
		return "connectConfirmation"
	case CmdTDisconnectRequest:
		return "disconnect"
	case CmdTDisconnectConfirmation:
		return "disconnectConfirmation"
	case CmdTGetServiceProviderRequest:
		return "getServiceProvider"
	case CmdTGetServiceProviderConfirmation:
		return "getServiceProviderConfirmation"
	case CmdTGetServiceExtRequest:
		return "getServiceExt"
	case CmdTGetServiceExtConfirmation:
		return "getServiceExtConfirmation"
	case CmdTInvokeRequest:
		return "invoke"
	case CmdTInvokeConfirmation:
		return "invokeConfirmation"
	case CmdTException:
		return "exception"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is a known command type
func (t CommandType) IsValid() bool {
	return t >= CmdTConnectRequest && t <= CmdTException
}

// IsRequest reports whether t is sent by a client
func (t CommandType) IsRequest() bool {
	return t.IsValid() && t != CmdTException && t%2 == 1
}

// Confirmation returns the command type a server answers a request with on success.
// For types that are not requests CmdTNone is returned.
func (t CommandType) Confirmation() CommandType {
	if !t.IsRequest() {
		return CmdTNone
	}
	return t + 1
}

// MarshalJSON implements the json.Marshaller interface for CommandType.
func (t CommandType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for CommandType.
func (t *CommandType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for candidate := CmdTConnectRequest; candidate <= CmdTException; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown command type: %s", s)
}

// --------------------------------------------------------------------------
// Command Type Constants
// --------------------------------------------------------------------------

const (
	CmdTNone CommandType = iota

	// Session control
	CmdTConnectRequest
	CmdTConnectConfirmation
	CmdTDisconnectRequest
	CmdTDisconnectConfirmation

	// Handle resolution
	CmdTGetServiceProviderRequest
	CmdTGetServiceProviderConfirmation
	CmdTGetServiceExtRequest
	CmdTGetServiceExtConfirmation

	// Method calls
	CmdTInvokeRequest
	CmdTInvokeConfirmation

	// Sent by the server instead of a confirmation, an exception frame follows
	CmdTException
)

// --------------------------------------------------------------------------
// Protocol Constants
// --------------------------------------------------------------------------

const (
	// RemotingVersionRecent is the newest remoting version this client speaks
	RemotingVersionRecent uint8 = 3

	// DataTagEnd terminates every body when data tagging is negotiated
	DataTagEnd byte = 0xFF

	// CommunicationLayerMask marks error codes raised by the remoting layer itself.
	// Such exceptions carry no message.
	CommunicationLayerMask uint32 = 0x8000_0000
)

// Capabilities holds what a Connect exchange negotiated for a connection
type Capabilities struct {
	RemotingVersion uint8
	HasDataTagging  bool
	HasDatagramming bool
}

// String returns a short human-readable form of the capabilities
func (c Capabilities) String() string {
	return fmt.Sprintf("version=%d tagging=%t datagramming=%t", c.RemotingVersion, c.HasDataTagging, c.HasDatagramming)
}
