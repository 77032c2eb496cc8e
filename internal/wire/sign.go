package wire

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair wraps an ed25519 key used for request signing.
type Keypair struct {
	priv ed25519.PrivateKey
}

// KeypairFromBase58 decodes a Solana-style base58 secret key. Both the
// 64-byte expanded form (seed ‖ pubkey, the format wallet exports use) and
// a bare 32-byte seed are accepted.
func KeypairFromBase58(s string) (*Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &Keypair{priv: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &Keypair{priv: ed25519.NewKeyFromSeed(raw)}, nil
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// NewSessionKeypair generates a fresh ephemeral keypair for a session.
func NewSessionKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// Public returns the 32-byte public key.
func (k *Keypair) Public() []byte {
	return k.priv.Public().(ed25519.PublicKey)
}

// UserSign signs a frame with the identity key. The venue's user-auth path
// verifies the signature over the lowercase hex encoding of the frame, not
// the raw bytes.
func (k *Keypair) UserSign(frame []byte) []byte {
	return ed25519.Sign(k.priv, []byte(hex.EncodeToString(frame)))
}

// SessionSign signs the raw frame bytes with the ephemeral session key.
func (k *Keypair) SessionSign(frame []byte) []byte {
	return ed25519.Sign(k.priv, frame)
}

// VerifyUser checks a user-auth signature over hex(frame).
func VerifyUser(pub, frame, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(hex.EncodeToString(frame)), sig)
}

// VerifySession checks a session-auth signature over the raw frame.
func VerifySession(pub, frame, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub), frame, sig)
}
