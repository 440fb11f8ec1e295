/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for the off-chain data the loyalty-service owns: the reward inventory and
 * the issuance-run (saga) records. Defining an interface decouples the
 * orchestration logic from PostgreSQL and lets tests substitute fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: Issuance run identifiers.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/solperks/loyalty-service/internal/domain"
)

// Repository defines the set of methods for interacting with the off-chain
// store.
type Repository interface {
	// ReserveReward atomically selects one unreserved reward of the given type
	// and marks it reserved in the same statement, so concurrent issuance runs
	// can never claim the same item. Returns ErrNoInventory when nothing
	// matches.
	ReserveReward(ctx context.Context, rewardType domain.RewardType) (*domain.RewardItem, error)

	// MarkRewardConsumed records off-chain consumption of a reward. Idempotent:
	// marking an already-consumed reward is not an error.
	MarkRewardConsumed(ctx context.Context, address string) error

	// CreateIssuanceRun persists a new saga record at its initial step.
	CreateIssuanceRun(ctx context.Context, run *domain.IssuanceRun) error

	// AdvanceIssuanceRun moves a run to the named step and applies the patch.
	AdvanceIssuanceRun(ctx context.Context, runID uuid.UUID, step string, patch IssuanceRunPatch) error
}

// IssuanceRunPatch carries the optional fields recorded as a run progresses.
type IssuanceRunPatch struct {
	RewardAddress     *string
	TransferSignature *string
	OnChainTx         *string
	FailureReason     *string
}
