package client

import (
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
)

// --------------------------------------------------------------------------
// Command Interface
// --------------------------------------------------------------------------

// CommandState is the state of a single command
type CommandState uint8

const (
	StatePending CommandState = iota
	StateCompleted
	StateFailed
)

// String returns the string representation of a CommandState
func (s CommandState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ICommand is a single typed request/response exchange.
// The variant set is closed, every implementation lives in this package.
type ICommand interface {
	// Name is the metric and log label of the command
	Name() string

	// BuildRequest sets the command type, handles and data length of header
	// and returns the body that follows it
	BuildRequest(conn transport.IConnection, header *serializer.CommandHeader) ([]byte, error)

	// ParseResponse reads the response from conn. Result fields are only
	// assigned once the whole response was consumed.
	ParseResponse(conn transport.IConnection) error

	// State returns the state of the command
	State() CommandState

	// finish moves the command out of the pending state
	finish(err error)
}

// commandState is embedded by every command
type commandState struct {
	state CommandState
}

func (c *commandState) State() CommandState {
	return c.state
}

func (c *commandState) finish(err error) {
	if err != nil {
		c.state = StateFailed
		return
	}
	c.state = StateCompleted
}

// --------------------------------------------------------------------------
// Shared Response Handling
// --------------------------------------------------------------------------

// readResponseHeader reads the response header and skips additional header bytes.
// ok is false if the response is not the expected confirmation.
func readResponseHeader(conn transport.IConnection, expected common.CommandType) (bool, serializer.CommandHeader, error) {
	ok, header, err := serializer.ReadHeader(conn, expected)
	if err != nil {
		return false, header, err
	}

	if header.AdditionalHeaderSize > 0 {
		if _, err := conn.Receive(int(header.AdditionalHeaderSize)); err != nil {
			return false, header, err
		}
	}

	if negotiated := conn.Capabilities().RemotingVersion; header.RemotingVersion > negotiated {
		return false, header, common.NewDecodingError("invalid communication protocol version %d, expected %d", header.RemotingVersion, negotiated)
	}

	return ok, header, nil
}

// readException reads the exception frame following a mismatching header and
// returns the peer's error. An unreadable frame is returned as decoding error.
func readException(conn transport.IConnection, header serializer.CommandHeader) error {
	if header.CommandType != common.CmdTException {
		return common.NewDecodingError("protocol violation - unexpected command type %s in response", header.CommandType)
	}

	body, err := conn.Receive(header.DataLength)
	if err != nil {
		return err
	}

	exception, err := serializer.DecodeException(body)
	if err != nil {
		return err
	}

	if err := conn.ConsumeConfirmation(); err != nil {
		return err
	}
	return exception
}

// expectEmptyBody checks that a confirmation carries no body and consumes its marker.
// An unexpected body is skipped so the stream ends on a frame boundary.
func expectEmptyBody(conn transport.IConnection, header serializer.CommandHeader) error {
	if header.DataLength != 0 {
		if _, err := conn.Receive(header.DataLength); err != nil {
			return err
		}
		if err := conn.ConsumeConfirmation(); err != nil {
			return err
		}
		return common.NewDecodingError("unexpected %d byte body in %s", header.DataLength, header.CommandType)
	}
	return conn.ConsumeConfirmation()
}
