package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/cockroachdb/errors"
)

// sliceReceiver serves Receive calls from a fixed byte slice
type sliceReceiver struct {
	data []byte
	pos  int
}

func (r *sliceReceiver) Receive(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errors.Mark(errors.New("short read"), common.ErrConnection)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// TestHeaderRoundTrip tests that headers survive serialize/deserialize unchanged
func TestHeaderRoundTrip(t *testing.T) {
	headers := []CommandHeader{
		{CommandType: common.CmdTConnectRequest},
		{CommandType: common.CmdTConnectConfirmation, RemotingVersion: 3, HasDataTagging: true},
		{CommandType: common.CmdTGetServiceProviderRequest, HasDatagramming: true, DataLength: len("Arp.Plc.Eclr") + 1},
		{
			CommandType:           common.CmdTInvokeRequest,
			RemotingVersion:       common.RemotingVersionRecent,
			HasDataTagging:        true,
			HasDatagramming:       true,
			DataLength:            MaxDataLength,
			ServiceProviderHandle: 7,
			ServiceHandle:         0xFFFF,
			MethodHandle:          42,
			AdditionalHeaderSize:  3,
		},
	}

	for _, h := range headers {
		t.Run(h.CommandType.String(), func(t *testing.T) {
			data, err := h.Serialize()
			if err != nil {
				t.Fatalf("Failed to serialize header: %v", err)
			}
			if len(data) != HeaderSize {
				t.Fatalf("Serialized header has %d bytes, want %d", len(data), HeaderSize)
			}

			ok, result, err := Deserialize(data, h.CommandType)
			if err != nil {
				t.Fatalf("Failed to deserialize header: %v", err)
			}
			if !ok {
				t.Errorf("Expected command type %s to match", h.CommandType)
			}
			if !reflect.DeepEqual(h, result) {
				t.Errorf("Header doesn't match after round trip:\nOriginal: %+v\nResult: %+v", h, result)
			}
		})
	}
}

// TestHeaderLayout pins the little-endian wire layout
func TestHeaderLayout(t *testing.T) {
	h := CommandHeader{
		CommandType:           common.CmdTGetServiceExtRequest,
		RemotingVersion:       3,
		HasDataTagging:        true,
		HasDatagramming:       true,
		DataLength:            0x0102,
		ServiceProviderHandle: 7,
		ServiceHandle:         9,
		MethodHandle:          0x0A0B,
		AdditionalHeaderSize:  1,
	}
	data, err := h.Serialize()
	if err != nil {
		t.Fatalf("Failed to serialize header: %v", err)
	}

	expected := []byte{
		7, 0, // command type
		3,          // remoting version
		0x03,       // flags
		2, 1, 0, 0, // data length
		7, 0, // provider handle
		9, 0, // service handle
		0x0B, 0x0A, // method handle
		1, 0, // additional header size
	}
	if !bytes.Equal(data, expected) {
		t.Errorf("Unexpected layout:\nexpected % x\ngot      % x", expected, data)
	}
}

// TestHeaderEncodingErrors tests the validation done before writing a header
func TestHeaderEncodingErrors(t *testing.T) {
	testCases := []struct {
		name   string
		header CommandHeader
	}{
		{name: "Negative data length", header: CommandHeader{CommandType: common.CmdTConnectRequest, DataLength: -1}},
		{name: "Oversized data length", header: CommandHeader{CommandType: common.CmdTConnectRequest, DataLength: MaxDataLength + 1}},
		{name: "Unknown command type", header: CommandHeader{CommandType: 200}},
		{name: "No command type", header: CommandHeader{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.header.Serialize()
			if !errors.Is(err, common.ErrEncoding) {
				t.Errorf("Expected encoding error, got %v", err)
			}
		})
	}
}

// TestHeaderDecodingErrors tests how the codec handles truncated or corrupt headers
func TestHeaderDecodingErrors(t *testing.T) {
	valid, err := (&CommandHeader{CommandType: common.CmdTConnectConfirmation}).Serialize()
	if err != nil {
		t.Fatalf("Failed to serialize header: %v", err)
	}

	badFlags := append([]byte(nil), valid...)
	badFlags[3] = 0x80

	oversized := append([]byte(nil), valid...)
	oversized[7] = 0x7F

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Empty data", data: []byte{}},
		{name: "Truncated header", data: valid[:HeaderSize-1]},
		{name: "Unknown flags", data: badFlags},
		{name: "Oversized body", data: oversized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Deserialize(tc.data, common.CmdTConnectConfirmation)
			if !errors.Is(err, common.ErrDecoding) {
				t.Errorf("Expected decoding error, got %v", err)
			}
		})
	}
}

// TestReadHeaderMismatch tests that a mismatching header is consumed so the exception frame can follow
func TestReadHeaderMismatch(t *testing.T) {
	frame, err := EncodeException(0x1234, "provider not found", nil)
	if err != nil {
		t.Fatalf("Failed to encode exception: %v", err)
	}
	header, err := (&CommandHeader{CommandType: common.CmdTException, DataLength: len(frame)}).Serialize()
	if err != nil {
		t.Fatalf("Failed to serialize header: %v", err)
	}

	r := &sliceReceiver{data: append(header, frame...)}
	ok, h, err := ReadHeader(r, common.CmdTGetServiceProviderConfirmation)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected mismatch for command type %s", h.CommandType)
	}
	if r.pos != HeaderSize {
		t.Fatalf("Cursor advanced by %d bytes, want %d", r.pos, HeaderSize)
	}

	body, err := r.Receive(h.DataLength)
	if err != nil {
		t.Fatalf("Failed to read exception body: %v", err)
	}
	exc, err := DecodeException(body)
	if err != nil {
		t.Fatalf("Failed to decode exception: %v", err)
	}
	var se *common.ServerException
	if !errors.As(exc, &se) || se.Message != "provider not found" || se.Code != 0x1234 {
		t.Errorf("Unexpected exception %v", exc)
	}
}

// TestReadHeaderShortStream tests that short reads surface as the receiver's error
func TestReadHeaderShortStream(t *testing.T) {
	r := &sliceReceiver{data: make([]byte, HeaderSize-2)}
	_, _, err := ReadHeader(r, common.CmdTConnectConfirmation)
	if !errors.Is(err, common.ErrConnection) {
		t.Errorf("Expected connection error, got %v", err)
	}
}

// TestServiceRequestBody tests the GetServiceExtRequest body codec
func TestServiceRequestBody(t *testing.T) {
	body, err := EncodeServiceRequest(7, "Foo")
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if !bytes.Equal(body, []byte{7, 0, 'F', 'o', 'o', 0}) {
		t.Errorf("Unexpected body % x", body)
	}

	handle, name, err := DecodeServiceRequest(body)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if handle != 7 || name != "Foo" {
		t.Errorf("Expected (7, Foo), got (%d, %s)", handle, name)
	}

	if _, err := EncodeServiceRequest(0x8000, "Foo"); !errors.Is(err, common.ErrEncoding) {
		t.Errorf("Expected encoding error for handle outside int16, got %v", err)
	}
}

// TestStringCodec tests the NUL terminated string codec
func TestStringCodec(t *testing.T) {
	encoded, err := EncodeString("Arp.Plc.Eclr")
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if len(encoded) != len("Arp.Plc.Eclr")+1 {
		t.Errorf("Encoded length %d, want %d", len(encoded), len("Arp.Plc.Eclr")+1)
	}

	invalid := []struct {
		name string
		data []byte
	}{
		{name: "Empty", data: nil},
		{name: "Missing terminator", data: []byte("abc")},
		{name: "Invalid UTF-8", data: []byte{0xff, 0xfe, 0}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeString(tc.data); !errors.Is(err, common.ErrDecoding) {
				t.Errorf("Expected decoding error, got %v", err)
			}
		})
	}

	if _, err := EncodeString("a\x00b"); !errors.Is(err, common.ErrEncoding) {
		t.Errorf("Expected encoding error for embedded NUL, got %v", err)
	}
}

// TestExceptionFrames tests server and remoting-layer exception frames
func TestExceptionFrames(t *testing.T) {
	t.Run("Server exception", func(t *testing.T) {
		data, err := EncodeError(&common.ServerException{Code: 0x0042, Message: "boom", Inner: []string{"a", "b"}}, 0)
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		exc, err := DecodeException(data)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		expected := &common.ServerException{Code: 0x0042, Message: "boom", Inner: []string{"a", "b"}}
		if !reflect.DeepEqual(exc, expected) {
			t.Errorf("Expected %v, got %v", expected, exc)
		}
	})

	t.Run("Remoting fatal error", func(t *testing.T) {
		code := common.CommunicationLayerMask | 0x11
		data, err := EncodeException(code, "ignored", nil)
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		if len(data) != 4 {
			t.Errorf("Remoting errors must carry only the code, got %d bytes", len(data))
		}
		exc, err := DecodeException(data)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		var fe *common.RemotingFatalError
		if !errors.As(exc, &fe) || fe.Code != code {
			t.Errorf("Unexpected exception %v", exc)
		}
	})

	t.Run("Truncated frame", func(t *testing.T) {
		data, err := EncodeException(0x42, "boom", nil)
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		if _, err := DecodeException(data[:len(data)-3]); !errors.Is(err, common.ErrDecoding) {
			t.Errorf("Expected decoding error, got %v", err)
		}
	})
}
