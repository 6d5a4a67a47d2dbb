package serializer

import (
	"encoding/binary"

	"github.com/ValentinKolb/dRSC/rpc/common"
)

const (
	// HeaderSize is the fixed width of every command header on the wire
	HeaderSize = 16

	// MaxDataLength is the largest body a single frame may carry (16 MiB)
	MaxDataLength = 16 << 20
)

// Bit flags of the header's capability byte
const (
	flagDataTagging  byte = 1 << 0
	flagDatagramming byte = 1 << 1

	knownFlags = flagDataTagging | flagDatagramming
)

// Receiver is the part of a connection the header codec reads from
type Receiver interface {
	// Receive blocks until exactly n bytes were read
	Receive(n int) ([]byte, error)
}

// CommandHeader is the preamble of every exchange.
// Handle fields are 0 when unset.
type CommandHeader struct {
	CommandType     common.CommandType
	RemotingVersion uint8
	HasDataTagging  bool
	HasDatagramming bool

	// DataLength is the size of the body following the header
	DataLength int

	ServiceProviderHandle uint16
	ServiceHandle         uint16
	MethodHandle          uint16
	AdditionalHeaderSize  uint16
}

// NewCommandHeader creates a header seeded with negotiated capabilities
func NewCommandHeader(caps common.Capabilities) *CommandHeader {
	return &CommandHeader{
		RemotingVersion: caps.RemotingVersion,
		HasDataTagging:  caps.HasDataTagging,
		HasDatagramming: caps.HasDatagramming,
	}
}

// Capabilities returns the capability part of the header
func (h *CommandHeader) Capabilities() common.Capabilities {
	return common.Capabilities{
		RemotingVersion: h.RemotingVersion,
		HasDataTagging:  h.HasDataTagging,
		HasDatagramming: h.HasDatagramming,
	}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Serialize writes the header in its fixed-width little-endian layout:
//   - 2 bytes: command type
//   - 1 byte:  remoting version
//   - 1 byte:  flags (bit 0 data tagging, bit 1 datagramming)
//   - 4 bytes: data length
//   - 2 bytes: service provider handle
//   - 2 bytes: service handle
//   - 2 bytes: method handle
//   - 2 bytes: additional header size
func (h *CommandHeader) Serialize() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := h.SerializeTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// SerializeTo writes the header into buf, which must hold at least HeaderSize bytes
func (h *CommandHeader) SerializeTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return common.NewEncodingError("buffer too short for header: %d < %d", len(buf), HeaderSize)
	}
	if !h.CommandType.IsValid() {
		return common.NewEncodingError("unknown command type %d", uint16(h.CommandType))
	}
	if h.DataLength < 0 {
		return common.NewEncodingError("negative data length %d", h.DataLength)
	}
	if h.DataLength > MaxDataLength {
		return common.NewEncodingError("data length %d exceeds maximum frame size %d", h.DataLength, MaxDataLength)
	}

	var flags byte
	if h.HasDataTagging {
		flags |= flagDataTagging
	}
	if h.HasDatagramming {
		flags |= flagDatagramming
	}

	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.CommandType))
	buf[2] = h.RemotingVersion
	buf[3] = flags
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.DataLength))
	binary.LittleEndian.PutUint16(buf[8:10], h.ServiceProviderHandle)
	binary.LittleEndian.PutUint16(buf[10:12], h.ServiceHandle)
	binary.LittleEndian.PutUint16(buf[12:14], h.MethodHandle)
	binary.LittleEndian.PutUint16(buf[14:16], h.AdditionalHeaderSize)

	return nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Deserialize decodes a header from data.
// success is false when the decoded command type is not expectedType, the
// decoded header is returned anyway so the caller can read the exception frame.
func Deserialize(data []byte, expectedType common.CommandType) (success bool, header CommandHeader, err error) {
	if len(data) < HeaderSize {
		return false, header, common.NewDecodingError("data too short for header: %d < %d", len(data), HeaderSize)
	}

	flags := data[3]
	if flags&^knownFlags != 0 {
		return false, header, common.NewDecodingError("unknown header flags 0x%02x", flags)
	}

	length := binary.LittleEndian.Uint32(data[4:8])
	if length > MaxDataLength {
		return false, header, common.NewDecodingError("data length %d exceeds maximum frame size %d", length, MaxDataLength)
	}

	header = CommandHeader{
		CommandType:           common.CommandType(binary.LittleEndian.Uint16(data[0:2])),
		RemotingVersion:       data[2],
		HasDataTagging:        flags&flagDataTagging != 0,
		HasDatagramming:       flags&flagDatagramming != 0,
		DataLength:            int(length),
		ServiceProviderHandle: binary.LittleEndian.Uint16(data[8:10]),
		ServiceHandle:         binary.LittleEndian.Uint16(data[10:12]),
		MethodHandle:          binary.LittleEndian.Uint16(data[12:14]),
		AdditionalHeaderSize:  binary.LittleEndian.Uint16(data[14:16]),
	}

	return header.CommandType == expectedType, header, nil
}

// ReadHeader receives exactly HeaderSize bytes and decodes them.
// The stream advances by the header width on the success and on the mismatch path.
func ReadHeader(r Receiver, expectedType common.CommandType) (bool, CommandHeader, error) {
	data, err := r.Receive(HeaderSize)
	if err != nil {
		return false, CommandHeader{}, err
	}
	return Deserialize(data, expectedType)
}
