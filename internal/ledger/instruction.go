/**
 * @description
 * Instruction builders for the loyalty ledger program. The program exposes two
 * callable instructions: increment_tx_count and update_merchant_nft_status.
 * Instruction data is the 8-byte method discriminator followed by the
 * borsh-encoded arguments, matching the program's IDL.
 *
 * @dependencies
 * - crypto/sha256: Discriminator derivation.
 * - github.com/near/borsh-go: Argument serialization.
 */

package ledger

import (
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"
)

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation ready to be placed into a
// transaction.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// methodDiscriminator returns the 8-byte tag identifying a program method.
func methodDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// accountDiscriminator returns the 8-byte tag prefixed to a program-owned
// account's state.
func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// NewIncrementTxCountInstruction builds the counter-increment call. The
// instruction takes no arguments; the program mutates the merchant and user
// accounts referenced by the metas, authorized by the owner signer.
func NewIncrementTxCountInstruction(programID, merchantAccount, userAccount, contractOwnerAccount, ownerSigner PublicKey) Instruction {
	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: merchantAccount, IsWritable: true},
			{PublicKey: userAccount, IsWritable: true},
			{PublicKey: contractOwnerAccount},
			{PublicKey: ownerSigner, IsSigner: true, IsWritable: true},
		},
		Data: methodDiscriminator("increment_tx_count"),
	}
}

// updateNftStatusArgs mirrors the program's update_merchant_nft_status
// argument struct.
type updateNftStatusArgs struct {
	VerifiedNftMinted bool
	OgNftMinted       bool
}

// NewUpdateNftStatusInstruction builds the status-update call that records the
// minted flags on the merchant account. Both flags are passed; the caller
// carries the unchanged one through from the current account state.
func NewUpdateNftStatusInstruction(programID, merchantAccount, contractOwnerAccount, ownerSigner PublicKey, verifiedNftMinted, ogNftMinted bool) (Instruction, error) {
	args, err := borsh.Serialize(updateNftStatusArgs{
		VerifiedNftMinted: verifiedNftMinted,
		OgNftMinted:       ogNftMinted,
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("failed to encode nft status args: %w", err)
	}
	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: merchantAccount, IsWritable: true},
			{PublicKey: contractOwnerAccount},
			{PublicKey: ownerSigner, IsSigner: true, IsWritable: true},
		},
		Data: append(methodDiscriminator("update_merchant_nft_status"), args...),
	}, nil
}
