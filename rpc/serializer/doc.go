// Package serializer provides the binary codec of the RSC wire protocol. It
// encodes and decodes the fixed-width command header preceding every
// exchange and the command specific bodies that follow it.
//
// The package focuses on:
//   - A fixed-width, little-endian header layout (HeaderSize bytes)
//   - Strict validation of both locally built and received frames
//   - Stream friendly decoding that consumes exactly the header width
//
// Key Components:
//
//   - CommandHeader: Command type, remoting version, capability flags, body
//     length and the provider/service/method handle fields. Serialize fails
//     with common.ErrEncoding for negative or oversized bodies and unknown
//     command types.
//
//   - Deserialize / ReadHeader: Decode a header and report whether it carries
//     the expected (confirmation) type. A mismatch is not an error, it signals
//     that an exception frame follows. Truncated or malformed input fails with
//     common.ErrDecoding.
//
//   - Body codec: NUL terminated UTF-8 strings, the provider and service
//     lookup bodies and exception frames (EncodeException / DecodeException).
//
// Thread Safety:
//
//	All functions are stateless and safe for concurrent use.
package serializer
