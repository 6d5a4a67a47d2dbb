package serializer

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/ValentinKolb/dRSC/rpc/common"
)

// --------------------------------------------------------------------------
// Strings
// --------------------------------------------------------------------------

// EncodeString encodes s as UTF-8 followed by a NUL terminator.
// The encoded length (len(s)+1) is what a header's DataLength announces.
func EncodeString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, common.NewEncodingError("string is not valid UTF-8")
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return nil, common.NewEncodingError("string contains a NUL byte")
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf, nil
}

// DecodeString decodes a NUL terminated UTF-8 string occupying all of data
func DecodeString(data []byte) (string, error) {
	if len(data) == 0 || data[len(data)-1] != 0 {
		return "", common.NewDecodingError("string is not NUL terminated")
	}
	data = data[:len(data)-1]
	if !utf8.Valid(data) {
		return "", common.NewDecodingError("string is not valid UTF-8")
	}
	return string(data), nil
}

// putSizedString appends a uint16 length (including the terminator) and the encoded string
func putSizedString(buf []byte, s string) ([]byte, error) {
	encoded, err := EncodeString(s)
	if err != nil {
		return nil, err
	}
	if len(encoded) > math.MaxUint16 {
		return nil, common.NewEncodingError("string too long: %d bytes", len(encoded))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(encoded)))
	return append(buf, encoded...), nil
}

// readSizedString reads a string written by putSizedString and returns the remaining data
func readSizedString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, common.NewDecodingError("data too short for string length")
	}
	n := int(binary.LittleEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < n {
		return "", nil, common.NewDecodingError("data too short for string data: %d < %d", len(data), n)
	}
	s, err := DecodeString(data[:n])
	if err != nil {
		return "", nil, err
	}
	return s, data[n:], nil
}

// --------------------------------------------------------------------------
// Handle Requests
// --------------------------------------------------------------------------

// EncodeProviderRequest encodes the body of a GetServiceProviderHandle request
func EncodeProviderRequest(providerName string) ([]byte, error) {
	if providerName == "" {
		return nil, common.NewEncodingError("empty provider name")
	}
	return EncodeString(providerName)
}

// DecodeProviderRequest decodes the body of a GetServiceProviderHandle request
func DecodeProviderRequest(data []byte) (string, error) {
	return DecodeString(data)
}

// EncodeServiceRequest encodes the body of a GetServiceExtRequest:
//   - 2 bytes: provider handle (int16, little endian)
//   - N bytes: service name, UTF-8, NUL terminated
func EncodeServiceRequest(providerHandle uint16, serviceName string) ([]byte, error) {
	if providerHandle > math.MaxInt16 {
		return nil, common.NewEncodingError("provider handle %d does not fit into int16", providerHandle)
	}
	if serviceName == "" {
		return nil, common.NewEncodingError("empty service name")
	}
	name, err := EncodeString(serviceName)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 2, 2+len(name))
	binary.LittleEndian.PutUint16(buf, providerHandle)
	return append(buf, name...), nil
}

// DecodeServiceRequest decodes the body of a GetServiceExtRequest
func DecodeServiceRequest(data []byte) (uint16, string, error) {
	if len(data) < 2 {
		return 0, "", common.NewDecodingError("data too short for provider handle")
	}
	handle := binary.LittleEndian.Uint16(data[:2])
	name, err := DecodeString(data[2:])
	if err != nil {
		return 0, "", err
	}
	return handle, name, nil
}

// --------------------------------------------------------------------------
// Exception Frames
// --------------------------------------------------------------------------

// EncodeException encodes the body following a CmdTException header:
//   - 4 bytes: error code (uint32, little endian)
//
// and, if the code does not belong to the communication layer:
//   - sized string: message
//   - 2 bytes: count of inner messages, each a sized string
//
// A sized string is a uint16 length (including the NUL terminator) and the string.
func EncodeException(code uint32, message string, inner []string) ([]byte, error) {
	buf := binary.LittleEndian.AppendUint32(nil, code)
	if common.IsCommunicationLayerCode(code) {
		return buf, nil
	}

	var err error
	if buf, err = putSizedString(buf, message); err != nil {
		return nil, err
	}
	if len(inner) > math.MaxUint16 {
		return nil, common.NewEncodingError("too many inner messages: %d", len(inner))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(inner)))
	for _, msg := range inner {
		if buf, err = putSizedString(buf, msg); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// EncodeError encodes err as an exception frame body.
// Errors that are neither *ServerException nor *RemotingFatalError are sent with the given fallback code.
func EncodeError(err error, fallbackCode uint32) ([]byte, error) {
	switch e := err.(type) {
	case *common.ServerException:
		return EncodeException(e.Code, e.Message, e.Inner)
	case *common.RemotingFatalError:
		return EncodeException(e.Code, "", nil)
	default:
		return EncodeException(fallbackCode, err.Error(), nil)
	}
}

// DecodeException decodes an exception frame body.
// It returns the peer's error (*ServerException or *RemotingFatalError) or a
// decoding error if the frame is malformed.
func DecodeException(data []byte) (error, error) {
	if len(data) < 4 {
		return nil, common.NewDecodingError("data too short for exception code")
	}
	code := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]

	if common.IsCommunicationLayerCode(code) {
		if len(data) != 0 {
			return nil, common.NewDecodingError("%d unexpected bytes after remoting error code", len(data))
		}
		return &common.RemotingFatalError{Code: code}, nil
	}

	message, data, err := readSizedString(data)
	if err != nil {
		return nil, err
	}

	if len(data) < 2 {
		return nil, common.NewDecodingError("data too short for inner message count")
	}
	count := int(binary.LittleEndian.Uint16(data[:2]))
	data = data[2:]

	var inner []string
	for i := 0; i < count; i++ {
		var msg string
		if msg, data, err = readSizedString(data); err != nil {
			return nil, err
		}
		inner = append(inner, msg)
	}

	if len(data) != 0 {
		return nil, common.NewDecodingError("%d unexpected bytes after exception frame", len(data))
	}

	return &common.ServerException{Code: code, Message: message, Inner: inner}, nil
}
