/**
 * @description
 * Deterministic sub-account (program derived address) computation. Derivation
 * is a pure function of the seeds and the issuing program's identifier: the
 * candidate address is the SHA-256 of the seeds, a bump byte, the program id
 * and a fixed domain separator, accepted only when the digest is not a valid
 * curve point (so no private key can exist for it). The bump search starts at
 * 255 and decrements.
 *
 * @dependencies
 * - crypto/sha256: Standard Go library for the derivation digest.
 * - filippo.io/edwards25519: Curve point decoding for the off-curve check.
 */

package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Seed tags for the program-owned sub-accounts.
const (
	SeedContractOwner = "contract_owner"
	SeedMerchant      = "merchant"
	SeedUser          = "user"
)

// derivationMarker is the domain separator appended to every candidate digest.
const derivationMarker = "ProgramDerivedAddress"

// maxSeedLength bounds each individual seed.
const maxSeedLength = 32

// ErrDerivationExhausted is returned when no bump in [0,255] yields an
// off-curve address. Real key spaces never exhaust this; treat as fatal.
var ErrDerivationExhausted = errors.New("address derivation exhausted bump range")

// createProgramAddress computes the address for an explicit seed list plus
// program id, failing when the digest lands on the curve.
func createProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	var pk PublicKey
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return pk, fmt.Errorf("seed length %d exceeds maximum %d", len(seed), maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))
	copy(pk[:], h.Sum(nil))

	if isOnCurve(pk[:]) {
		return PublicKey{}, errors.New("derived address is on curve")
	}
	return pk, nil
}

// FindProgramAddress searches bumps from 255 downwards until the candidate
// address is off-curve. Repeated calls with identical inputs always return the
// same (address, bump) pair.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		candidate := append(append([][]byte{}, seeds...), []byte{byte(bump)})
		addr, err := createProgramAddress(candidate, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, ErrDerivationExhausted
}

// Derive computes the sub-account address for one of the fixed seed tags. The
// contract_owner account is a singleton (no owner key); merchant and user
// accounts include the owning wallet's public key in the seed.
func Derive(tag string, ownerKey *PublicKey, programID PublicKey) (PublicKey, uint8, error) {
	switch tag {
	case SeedContractOwner:
		return FindProgramAddress([][]byte{[]byte(tag)}, programID)
	case SeedMerchant, SeedUser:
		if ownerKey == nil {
			return PublicKey{}, 0, fmt.Errorf("seed tag %q requires an owner key", tag)
		}
		return FindProgramAddress([][]byte{[]byte(tag), ownerKey[:]}, programID)
	default:
		return PublicKey{}, 0, fmt.Errorf("unknown seed tag %q", tag)
	}
}

// isOnCurve reports whether the bytes decode to a valid edwards25519 point.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
