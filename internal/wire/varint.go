// Package wire implements the venue's request framing: a little-endian
// base-128 length prefix, an ed25519 signature trailer, and the protobuf
// payload codec for actions and receipts.
//
// The venue serves its message schema at runtime, so payloads are encoded
// and decoded by hand with protowire against the published field numbers
// rather than from vendored generated code.
package wire

import "errors"

// ErrMalformedFrame is returned when a buffer cannot be parsed as a frame:
// a truncated varint, a length prefix exceeding the buffer, or a missing
// signature trailer.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// AppendUvarint appends v to buf in little-endian base-128: seven bits per
// byte, least-significant group first, high bit set on every byte except
// the last.
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// Uvarint decodes a varint from buf starting at off. It returns the value
// and the number of bytes consumed, or ErrMalformedFrame if the buffer
// ends mid-varint or the encoding exceeds 64 bits.
func Uvarint(buf []byte, off int) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := off; i < len(buf); i++ {
		b := buf[i]
		if shift >= 64 || (shift == 63 && b > 1) {
			return 0, 0, ErrMalformedFrame
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i - off + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrMalformedFrame
}
