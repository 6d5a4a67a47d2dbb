package common

import (
	"fmt"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

var (
	// ErrNotConnected is returned when an exchange is attempted on a closed or never opened connection
	ErrNotConnected = errors.New("not connected")
	// ErrEncoding marks malformed local construction of a header or body
	ErrEncoding = errors.New("encoding error")
	// ErrDecoding marks malformed or truncated bytes received from the peer
	ErrDecoding = errors.New("decoding error")
	// ErrConnection marks low-level I/O failures (broken pipe, short read)
	ErrConnection = errors.New("connection error")
	// ErrTimeout marks an exchange that did not complete before its deadline
	ErrTimeout = errors.New("timeout")
	// ErrServiceNotFound is returned when a provider or service name cannot be resolved
	ErrServiceNotFound = errors.New("service not found")
	// ErrInvalidOperation is returned when a call is not allowed in the current state
	ErrInvalidOperation = errors.New("invalid operation")
)

// NewEncodingError creates an error classified as ErrEncoding
func NewEncodingError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrEncoding, format, args...)
}

// NewDecodingError creates an error classified as ErrDecoding
func NewDecodingError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDecoding, format, args...)
}

// WrapIOError classifies an I/O failure as ErrTimeout if the underlying
// network error timed out and as ErrConnection otherwise.
// The original cause stays reachable with errors.Is / errors.As.
func WrapIOError(cause error, op string) error {
	if cause == nil {
		return nil
	}
	wrapped := errors.Wrapf(cause, "%s failed", op)

	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return errors.Mark(wrapped, ErrTimeout)
	}
	return errors.Mark(wrapped, ErrConnection)
}

// --------------------------------------------------------------------------
// Peer Reported Errors
// --------------------------------------------------------------------------

// ServerException is an error the peer explicitly reported in an exception frame
type ServerException struct {
	Code    uint32
	Message string
	Inner   []string
}

func (e *ServerException) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("server exception 0x%08x: %s", e.Code, e.Message))
	if len(e.Inner) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(e.Inner, "; "))
		sb.WriteString(")")
	}
	return sb.String()
}

// RemotingFatalError is reported by the remoting layer of the peer.
// It carries only an error code, never a message.
type RemotingFatalError struct {
	Code uint32
}

func (e *RemotingFatalError) Error() string {
	return fmt.Sprintf("remoting fatal error 0x%08x", e.Code)
}

// IsCommunicationLayerCode reports whether code belongs to the remoting layer
func IsCommunicationLayerCode(code uint32) bool {
	return code&CommunicationLayerMask == CommunicationLayerMask
}

// IsServerException reports whether err is (or wraps) a ServerException
func IsServerException(err error) bool {
	var se *ServerException
	return errors.As(err, &se)
}

// IsPeerError reports whether err was reported by the peer, either as a
// ServerException or as a RemotingFatalError
func IsPeerError(err error) bool {
	var fe *RemotingFatalError
	return IsServerException(err) || errors.As(err, &fe)
}
