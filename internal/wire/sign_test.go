package wire

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestKeypairFromBase58(t *testing.T) {
	t.Parallel()

	seed := testSeed()
	priv := ed25519.NewKeyFromSeed(seed)

	tests := []struct {
		name   string
		secret string
		ok     bool
	}{
		{"64-byte expanded", base58.Encode(priv), true},
		{"32-byte seed", base58.Encode(seed), true},
		{"wrong length", base58.Encode(seed[:16]), false},
		{"not base58", "0OIl", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kp, err := KeypairFromBase58(tt.secret)
			if tt.ok != (err == nil) {
				t.Fatalf("KeypairFromBase58 err = %v, ok = %v", err, tt.ok)
			}
			if tt.ok && !bytes.Equal(kp.Public(), priv.Public().(ed25519.PublicKey)) {
				t.Error("public key mismatch between seed and expanded forms")
			}
		})
	}
}

func TestUserSignOverHex(t *testing.T) {
	t.Parallel()

	kp, err := KeypairFromBase58(base58.Encode(testSeed()))
	if err != nil {
		t.Fatal(err)
	}
	frame := Frame([]byte("create-session-payload"))
	sig := kp.UserSign(frame)

	if len(sig) != SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureSize)
	}
	if !VerifyUser(kp.Public(), frame, sig) {
		t.Error("user signature does not verify over hex(frame)")
	}
	// The signature is over the hex encoding, not the raw frame.
	if VerifySession(kp.Public(), frame, sig) {
		t.Error("user signature unexpectedly verifies over raw frame")
	}

	// A tampered length prefix must invalidate the signature.
	tampered := append([]byte(nil), frame...)
	tampered[0] ^= 0x01
	if VerifyUser(kp.Public(), tampered, sig) {
		t.Error("signature verifies over tampered frame")
	}
}

func TestSessionSign(t *testing.T) {
	t.Parallel()

	kp, err := NewSessionKeypair()
	if err != nil {
		t.Fatal(err)
	}
	frame := Frame([]byte("place-order-payload"))
	sig := kp.SessionSign(frame)

	if !VerifySession(kp.Public(), frame, sig) {
		t.Error("session signature does not verify over raw frame")
	}
	if VerifyUser(kp.Public(), frame, sig) {
		t.Error("session signature unexpectedly verifies over hex(frame)")
	}
}
