package base

import (
	"io"
	"net"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
)

// writeFrame writes a frame to the connection with the format:
// - HeaderSize bytes: command header
// - N bytes: body (N = header.DataLength)
// - 1 byte: data tag end marker, only if tagged is true
func writeFrame(conn net.Conn, frame serializer.Frame, tagged bool) error {
	frame.Header.DataLength = len(frame.Body)
	header, err := frame.Header.Serialize()
	if err != nil {
		return err
	}

	b := net.Buffers{header, frame.Body}
	if tagged {
		b = append(b, []byte{common.DataTagEnd})
	}
	if _, err := b.WriteTo(conn); err != nil {
		return common.WrapIOError(err, "write frame")
	}
	return nil
}

// readFrame reads a request frame from the connection.
// The header's command type is not checked, any valid type is accepted.
func readFrame(r io.Reader, tagged bool) (serializer.Frame, error) {
	var frame serializer.Frame

	buf := make([]byte, serializer.HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return frame, err
	}

	_, header, err := serializer.Deserialize(buf, common.CmdTNone)
	if err != nil {
		return frame, err
	}
	frame.Header = header

	frame.Body = []byte{}
	if header.DataLength > 0 {
		frame.Body = make([]byte, header.DataLength)
		if _, err := io.ReadFull(r, frame.Body); err != nil {
			return frame, err
		}
	}

	if tagged {
		var marker [1]byte
		if _, err := io.ReadFull(r, marker[:]); err != nil {
			return frame, err
		}
		if marker[0] != common.DataTagEnd {
			return frame, common.NewDecodingError("protocol violation - missing data tag end, got 0x%02x", marker[0])
		}
	}

	return frame, nil
}
