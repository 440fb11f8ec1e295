/**
 * @description
 * Readable state schema of the loyalty ledger program. The orchestrator never
 * writes these accounts directly; it decodes them to evaluate badge
 * eligibility before submitting instructions.
 *
 * @dependencies
 * - github.com/near/borsh-go: Account state deserialization.
 */

package ledger

import (
	"bytes"
	"fmt"

	"github.com/near/borsh-go"
)

// MerchantAccountDiscriminator prefixes every merchant account's state bytes.
var MerchantAccountDiscriminator = accountDiscriminator("MerchantAccount")

// MerchantAccount is the ledger-owned merchant state, read-only to this
// service. Mutations happen exclusively inside the ledger program.
type MerchantAccount struct {
	VerifiedBadge     bool
	OgBadge           bool
	VerifiedNftMinted bool
	OgNftMinted       bool
	Points            uint64
	TxCount           uint64
}

// DecodeMerchantAccount parses raw account bytes fetched from the ledger.
func DecodeMerchantAccount(data []byte) (*MerchantAccount, error) {
	if len(data) < len(MerchantAccountDiscriminator) {
		return nil, fmt.Errorf("merchant account data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], MerchantAccountDiscriminator) {
		return nil, fmt.Errorf("account data is not a merchant account")
	}
	var account MerchantAccount
	if err := borsh.Deserialize(&account, data[8:]); err != nil {
		return nil, fmt.Errorf("failed to decode merchant account: %w", err)
	}
	return &account, nil
}

// EncodeMerchantAccount serializes merchant state with its discriminator.
// The service never submits these bytes; the encoder exists so tests and
// tooling can fabricate ledger responses that match the program's layout.
func EncodeMerchantAccount(account MerchantAccount) ([]byte, error) {
	body, err := borsh.Serialize(account)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merchant account: %w", err)
	}
	return append(append([]byte{}, MerchantAccountDiscriminator...), body...), nil
}
