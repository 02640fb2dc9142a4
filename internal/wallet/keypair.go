package wallet

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Keypair holds an ed25519 signing key and its base58 address.
type Keypair struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// FromBase58 loads a keypair from a base58-encoded 64-byte secret key, the
// format wallet apps export.
func FromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key not on curve: %w", err)
	}

	return &Keypair{priv: priv, pubkey: base58.Encode(pub)}, nil
}

// FromSeed derives a keypair from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{priv: priv, pubkey: base58.Encode(pub)}, nil
}

// PublicKey returns the base58 address.
func (k *Keypair) PublicKey() string {
	return k.pubkey
}

// Sign signs msg with the private key.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// ValidateAddress checks that s is a base58-encoded 32-byte value lying on
// the ed25519 curve, i.e. a plausible wallet address.
func ValidateAddress(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("address %q is %d bytes, want %d", s, len(raw), ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("address %q not on curve: %w", s, err)
	}
	return nil
}
