/**
 * @description
 * This file defines the core domain models for the loyalty-service: reward
 * inventory items, issuance receipts, issuance-run (saga) records, and the
 * request/response DTOs exchanged with the API layer.
 *
 * @notes
 * - Reward items are off-chain-owned; ledger-owned state (merchant/user
 *   accounts) lives in internal/ledger next to its decoder.
 * - An issuance run records the furthest completed step of each reward
 *   issuance so an external reconciliation job can repair partial runs.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// RewardType is the category of an issuable reward.
type RewardType string

const (
	RewardTypeVerified RewardType = "verified"
	RewardTypeOg       RewardType = "og"
)

// Valid reports whether the reward type is one of the fixed enum values.
func (t RewardType) Valid() bool {
	return t == RewardTypeVerified || t == RewardTypeOg
}

// RewardItem is one off-chain-tracked transferable asset awaiting issuance.
// `Reserved` flips false→true exactly once, atomically at selection time;
// `Consumed` is recorded after the on-chain status update has succeeded.
type RewardItem struct {
	ID         int64      `json:"id"`
	Address    string     `json:"address"`
	RewardType RewardType `json:"reward_type"`
	Reserved   bool       `json:"reserved"`
	Consumed   bool       `json:"consumed"`
	ReservedAt *time.Time `json:"reserved_at,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// IssuanceReceipt is returned to the caller after a successful reward
// issuance.
type IssuanceReceipt struct {
	TransferSignature string     `json:"transfer_signature"`
	OnChainTx         string     `json:"on_chain_tx"`
	RewardAddress     string     `json:"reward_address"`
	RewardType        RewardType `json:"reward_type"`
}

// Issuance saga steps, in execution order. Each names the furthest operation
// that has committed for a run.
const (
	IssuanceStepStarted            = "started"
	IssuanceStepEligibilityChecked = "eligibility_checked"
	IssuanceStepRewardReserved     = "reward_reserved"
	IssuanceStepAssetTransferred   = "asset_transferred"
	IssuanceStepStatusUpdated      = "status_updated"
	IssuanceStepConsumptionMarked  = "consumption_marked"
)

// IssuanceRun is the persisted saga record for one reward issuance.
type IssuanceRun struct {
	ID                uuid.UUID  `json:"id"`
	MerchantAddress   string     `json:"merchant_address"`
	RewardType        RewardType `json:"reward_type"`
	Step              string     `json:"step"`
	RewardAddress     *string    `json:"reward_address,omitempty"`
	TransferSignature *string    `json:"transfer_signature,omitempty"`
	OnChainTx         *string    `json:"on_chain_tx,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IncrementTxCountRequest is the DTO for loyalty-counter increment API
// requests.
type IncrementTxCountRequest struct {
	UserAddress     string `json:"user_address"`
	MerchantAddress string `json:"merchant_address"`
	TransactionID   string `json:"transaction_id"`
}

// MintNftRequest is the DTO for reward issuance API requests.
type MintNftRequest struct {
	MerchantAddress string     `json:"merchant_address"`
	NftType         RewardType `json:"nft_type"`
}

// MerchantStatus is the API view of a merchant's on-ledger loyalty state.
type MerchantStatus struct {
	MerchantAddress   string `json:"merchant_address"`
	VerifiedBadge     bool   `json:"verified_badge"`
	OgBadge           bool   `json:"og_badge"`
	VerifiedNftMinted bool   `json:"verified_nft_minted"`
	OgNftMinted       bool   `json:"og_nft_minted"`
	Points            uint64 `json:"points"`
	TxCount           uint64 `json:"tx_count"`
}
