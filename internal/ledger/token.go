/**
 * @description
 * Helpers for the ledger's token program: associated holding-account
 * derivation, holding creation, single-unit transfers, and balance parsing.
 * Reward assets are one-of-one tokens, so every transfer moves exactly one
 * unit from the owner's holding to the merchant's.
 *
 * @dependencies
 * - encoding/binary: Token instruction data layout (little endian).
 */

package ledger

import (
	"encoding/binary"
	"fmt"
)

// Well-known program identifiers for the token runtime.
var (
	TokenProgramID           = MustParsePublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParsePublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SystemProgramID          = PublicKey{}
	RentSysvarID             = MustParsePublicKey("SysvarRent111111111111111111111111111111111")
)

// tokenTransferTag is the token program's transfer method tag.
const tokenTransferTag = 3

// tokenAccountMinLength covers mint (32) + owner (32) + amount (8).
const tokenAccountMinLength = 72

// DeriveAssociatedTokenAddress computes the canonical holding address for a
// (wallet, asset) pair. Deterministic, like every derived address.
func DeriveAssociatedTokenAddress(wallet, mint PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{wallet[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
}

// NewCreateAssociatedTokenAccountInstruction builds the instruction that
// creates a wallet's holding account for an asset, funded by the payer.
func NewCreateAssociatedTokenAccountInstruction(payer, wallet, mint, associatedAccount PublicKey) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: associatedAccount, IsWritable: true},
			{PublicKey: wallet},
			{PublicKey: mint},
			{PublicKey: SystemProgramID},
			{PublicKey: TokenProgramID},
			{PublicKey: RentSysvarID},
		},
	}
}

// NewTokenTransferInstruction builds a transfer of `amount` units between two
// holding accounts, authorized by the source's owner.
func NewTokenTransferInstruction(source, destination, owner PublicKey, amount uint64) Instruction {
	data := make([]byte, 9)
	data[0] = tokenTransferTag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: source, IsWritable: true},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// ParseTokenAccountAmount extracts the unit balance from raw holding-account
// bytes.
func ParseTokenAccountAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountMinLength {
		return 0, fmt.Errorf("token account data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[64:72]), nil
}
