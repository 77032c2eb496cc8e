package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 17, 0x7f, 0x80, 300, 16384, 1<<32 - 1, math.MaxUint64}
	for _, v := range values {
		buf := AppendUvarint(nil, v)
		got, n, err := Uvarint(buf, 0)
		if err != nil {
			t.Fatalf("Uvarint(%x): %v", buf, err)
		}
		if got != v || n != len(buf) {
			t.Errorf("round trip %d: got (%d, %d), want (%d, %d)", v, got, n, v, len(buf))
		}
	}
}

func TestUvarintEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{17, []byte{0x11}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, tt := range tests {
		tt := tt
		if got := AppendUvarint(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendUvarint(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}

func TestUvarintMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0x80}},
		{"truncated long", []byte{0xff, 0xff, 0xff}},
		{"overflow", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := Uvarint(tt.buf, 0); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Uvarint(%x) err = %v, want ErrMalformedFrame", tt.buf, err)
			}
		})
	}
}

func TestFrameLayout(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xab}, 17)
	frame := Frame(payload)

	if frame[0] != 0x11 {
		t.Errorf("17-byte payload frame starts with %#x, want 0x11", frame[0])
	}
	if len(frame) != 1+17 {
		t.Errorf("frame length = %d, want 18", len(frame))
	}

	got, n, err := SplitFrame(frame)
	if err != nil {
		t.Fatalf("SplitFrame: %v", err)
	}
	if !bytes.Equal(got, payload) || n != len(frame) {
		t.Errorf("SplitFrame = (%x, %d), want (%x, %d)", got, n, payload, len(frame))
	}
}

func TestSplitFrameTrailingBytesIgnored(t *testing.T) {
	t.Parallel()

	payload := []byte{1, 2, 3}
	buf := append(Frame(payload), 0xde, 0xad)
	got, n, err := SplitFrame(buf)
	if err != nil {
		t.Fatalf("SplitFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
	if n != 4 {
		t.Errorf("consumed = %d, want 4", n)
	}
}

func TestSplitFrameOverrun(t *testing.T) {
	t.Parallel()

	// Length prefix declares 10 bytes, only 3 present.
	buf := append([]byte{0x0a}, 1, 2, 3)
	if _, _, err := SplitFrame(buf); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("SplitFrame err = %v, want ErrMalformedFrame", err)
	}
}
