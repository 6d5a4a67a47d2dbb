package serializer

// Frame is a complete message: a header and the body it announces
type Frame struct {
	Header CommandHeader
	Body   []byte
}

// NewFrame creates a frame and sets the header's data length to the body size
func NewFrame(header CommandHeader, body []byte) Frame {
	header.DataLength = len(body)
	return Frame{Header: header, Body: body}
}
