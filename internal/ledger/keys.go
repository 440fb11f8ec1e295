/**
 * @description
 * This file defines the key primitives used when talking to the ledger: public
 * keys, the owner signing keypair, and their base58 wire representation.
 *
 * @dependencies
 * - crypto/ed25519: Standard Go library used for signing key material.
 * - github.com/mr-tron/base58: Base58 encoding used by ledger addresses.
 */

package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of a ledger public key / address.
const PublicKeyLength = 32

// PublicKey is a 32-byte ledger address. Derived sub-account addresses share
// this representation even though no private key exists for them.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58-encoded ledger address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 address %q: %w", s, err)
	}
	if len(decoded) != PublicKeyLength {
		return pk, fmt.Errorf("invalid address length %d for %q", len(decoded), s)
	}
	copy(pk[:], decoded)
	return pk, nil
}

// MustParsePublicKey is ParsePublicKey for well-known constants; it panics on
// malformed input and must only be used with compile-time literals.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 form of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether the key is the all-zero value.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Keypair bundles the owner signing credential's public key with its ed25519
// private key. It is loaded once at startup and read-only thereafter.
type Keypair struct {
	PublicKey  PublicKey
	PrivateKey ed25519.PrivateKey
}

// NewKeypair wraps an ed25519 private key into a Keypair.
func NewKeypair(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(priv))
	}
	var pk PublicKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{PublicKey: pk, PrivateKey: priv}, nil
}

// KeypairFromBase58 decodes a base58-encoded 64-byte ed25519 secret key, the
// format the owner credential is provisioned in.
func KeypairFromBase58(secret string) (*Keypair, error) {
	decoded, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 secret key: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid secret key length %d, expected %d", len(decoded), ed25519.PrivateKeySize)
	}
	return NewKeypair(ed25519.PrivateKey(decoded))
}

// Sign signs the given message with the private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}
