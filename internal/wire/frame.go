package wire

// SignatureSize is the length of the ed25519 signature trailer on a
// request frame.
const SignatureSize = 64

// Frame prefixes payload with its varint-encoded length. This is the unit
// that gets signed; the caller appends the signature afterwards.
func Frame(payload []byte) []byte {
	buf := AppendUvarint(nil, uint64(len(payload)))
	return append(buf, payload...)
}

// SplitFrame parses a length-prefixed buffer and returns the payload and
// the number of bytes consumed (prefix + payload). Bytes past the declared
// length are left for the caller; a prefix that overruns the buffer is a
// malformed frame.
func SplitFrame(buf []byte) (payload []byte, n int, err error) {
	length, ln, err := Uvarint(buf, 0)
	if err != nil {
		return nil, 0, err
	}
	end := ln + int(length)
	if length > uint64(len(buf)) || end > len(buf) || end < ln {
		return nil, 0, ErrMalformedFrame
	}
	return buf[ln:end], end, nil
}
