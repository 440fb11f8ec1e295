/**
 * @description
 * The reward issuance saga. Issuing a badge reward spans three systems of
 * record (the reward inventory in Postgres, the ledger's token accounts, and
 * the ledger program's merchant state) with no cross-system atomic rollback.
 * Steps run in a fixed order and each commits before the next begins:
 *
 *   1. derive accounts and fetch merchant state
 *   2. eligibility check (terminal refusal, no side effects)
 *   3. reserve one inventory item (atomic conditional update)
 *   4. on-chain transfer of the reserved asset to the merchant
 *   5. on-chain status update flipping the minted flag
 *   6. off-chain consumption mark (soft-fail: the receipt is still returned)
 *
 * No step rolls back a prior one. Every run is recorded in issuance_runs with
 * its furthest completed step, and the two partial-failure windows
 * (post-reservation/pre-transfer and post-status-update/pre-consume-mark)
 * additionally publish a reconcile event so an external job can repair them.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: Run identifiers.
 * - internal/domain, internal/ledger, internal/store: Models, ledger
 *   primitives, data access.
 * - pkg/rabbitmq: Reconciliation and operator alert events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solperks/loyalty-service/internal/domain"
	"github.com/solperks/loyalty-service/internal/ledger"
	"github.com/solperks/loyalty-service/internal/store"
	"github.com/solperks/loyalty-service/pkg/rabbitmq"
)

// Issue runs the reward issuance saga for a merchant. On success the receipt
// carries the transfer signature, the status-update transaction, and the
// issued reward's address.
func (s *Service) Issue(ctx context.Context, merchantAddress string, rewardType domain.RewardType) (*domain.IssuanceReceipt, error) {
	if strings.TrimSpace(merchantAddress) == "" || rewardType == "" {
		return nil, fmt.Errorf("%w: merchant address and NFT type are required", ErrInvalidArgument)
	}
	if !rewardType.Valid() {
		return nil, fmt.Errorf("%w: invalid NFT type %q, must be %q or %q", ErrInvalidArgument, rewardType, domain.RewardTypeVerified, domain.RewardTypeOg)
	}
	if err := s.consumeMintRateLimit(ctx, merchantAddress); err != nil {
		return nil, err
	}
	merchantKey, err := ledger.ParsePublicKey(merchantAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// Step 1: derive accounts, fetch merchant state.
	account, err := s.fetchMerchantAccount(ctx, merchantKey)
	if err != nil {
		return nil, err
	}

	// Step 2: eligibility. Terminal refusal; nothing has been touched yet.
	if err := checkEligibility(account, rewardType); err != nil {
		log.Printf("level=info component=issuance step=eligibility outcome=refused merchant=%s reward_type=%s err=%v", merchantAddress, rewardType, err)
		return nil, err
	}

	run := &domain.IssuanceRun{
		ID:              uuid.New(),
		MerchantAddress: merchantAddress,
		RewardType:      rewardType,
		Step:            domain.IssuanceStepEligibilityChecked,
	}
	if err := s.repo.CreateIssuanceRun(ctx, run); err != nil {
		// The run record is reconciliation bookkeeping, never a reason to
		// refuse an eligible merchant.
		log.Printf("level=warn component=issuance run_id=%s msg=\"issuance run record creation failed\" err=%v", run.ID, err)
	}

	// Step 3: reserve inventory. The conditional update makes reservation
	// exactly-once even under concurrent runs for the same category.
	reward, err := s.repo.ReserveReward(ctx, rewardType)
	if err != nil {
		if errors.Is(err, store.ErrNoInventory) {
			log.Printf("level=warn component=issuance run_id=%s step=reserve outcome=exhausted reward_type=%s", run.ID, rewardType)
			s.publishInventoryExhausted(ctx, merchantAddress, rewardType)
		}
		s.advanceRun(ctx, run, run.Step, store.IssuanceRunPatch{FailureReason: ptr(err.Error())})
		return nil, err
	}
	s.advanceRun(ctx, run, domain.IssuanceStepRewardReserved, store.IssuanceRunPatch{RewardAddress: &reward.Address})

	// Step 4: on-chain asset transfer. Terminal on failure; the reservation
	// is deliberately not released: the item stays excluded from selection
	// until reconciliation decides its fate.
	transferSig, err := s.transferReward(ctx, reward, merchantKey)
	if err != nil {
		s.failRun(ctx, run, reward.Address, fmt.Sprintf("asset transfer failed: %v", err))
		return nil, fmt.Errorf("transferring reward %s: %w", reward.Address, err)
	}
	s.advanceRun(ctx, run, domain.IssuanceStepAssetTransferred, store.IssuanceRunPatch{TransferSignature: &transferSig})

	// Step 5: status update. Only the flag matching the reward type changes;
	// the other is carried through from the fetched state.
	verifiedMinted := account.VerifiedNftMinted || rewardType == domain.RewardTypeVerified
	ogMinted := account.OgNftMinted || rewardType == domain.RewardTypeOg
	merchantPDA, _, err := ledger.Derive(ledger.SeedMerchant, &merchantKey, s.programID)
	if err != nil {
		s.failRun(ctx, run, reward.Address, fmt.Sprintf("merchant account derivation failed: %v", err))
		return nil, fmt.Errorf("deriving merchant account: %w", err)
	}
	ownerPDA, _, err := ledger.Derive(ledger.SeedContractOwner, nil, s.programID)
	if err != nil {
		s.failRun(ctx, run, reward.Address, fmt.Sprintf("contract owner derivation failed: %v", err))
		return nil, fmt.Errorf("deriving contract owner account: %w", err)
	}
	statusIx, err := ledger.NewUpdateNftStatusInstruction(s.programID, merchantPDA, ownerPDA, s.signer.PublicKey, verifiedMinted, ogMinted)
	if err != nil {
		s.failRun(ctx, run, reward.Address, fmt.Sprintf("status instruction build failed: %v", err))
		return nil, err
	}
	statusSig, err := s.submitInstructions(ctx, statusIx)
	if err != nil {
		// The asset already moved on-chain; only the merchant flags and the
		// off-chain mark are missing. Recoverable by reconciliation.
		s.failRun(ctx, run, reward.Address, fmt.Sprintf("status update failed after transfer %s: %v", transferSig, err))
		return nil, fmt.Errorf("updating merchant nft status: %w", err)
	}
	s.advanceRun(ctx, run, domain.IssuanceStepStatusUpdated, store.IssuanceRunPatch{OnChainTx: &statusSig})

	receipt := &domain.IssuanceReceipt{
		TransferSignature: transferSig,
		OnChainTx:         statusSig,
		RewardAddress:     reward.Address,
		RewardType:        rewardType,
	}

	// Step 6: off-chain consumption mark. The on-chain state is already the
	// source of truth for eligibility, so a failure here is a soft error: log
	// it, flag it for reconciliation, and still return the receipt.
	if err := s.repo.MarkRewardConsumed(ctx, reward.Address); err != nil {
		log.Printf("level=error component=issuance run_id=%s step=consume_mark outcome=soft_fail reward=%s merchant=%s err=%v", run.ID, reward.Address, merchantAddress, err)
		s.publishReconcileRequired(ctx, run, reward.Address, fmt.Sprintf("consume mark failed: %v", err))
	} else {
		s.advanceRun(ctx, run, domain.IssuanceStepConsumptionMarked, store.IssuanceRunPatch{})
	}

	if s.events != nil {
		if err := s.events.PublishRewardIssued(ctx, rabbitmq.RewardIssuedEvent{
			MerchantAddress:   merchantAddress,
			RewardType:        string(rewardType),
			RewardAddress:     reward.Address,
			TransferSignature: transferSig,
			OnChainTx:         statusSig,
			Timestamp:         time.Now().UTC(),
		}); err != nil {
			log.Printf("level=warn component=issuance run_id=%s msg=\"reward issued event publish failed\" err=%v", run.ID, err)
		}
	}

	log.Printf("level=info component=issuance run_id=%s outcome=issued merchant=%s reward_type=%s reward=%s transfer=%s status_tx=%s",
		run.ID, merchantAddress, rewardType, reward.Address, transferSig, statusSig)
	return receipt, nil
}

// checkEligibility enforces the badge/minted rules for a reward type.
func checkEligibility(account *ledger.MerchantAccount, rewardType domain.RewardType) error {
	switch rewardType {
	case domain.RewardTypeVerified:
		if !account.VerifiedBadge {
			return fmt.Errorf("%w: merchant does not have verified badge", ErrNotEligible)
		}
		if account.VerifiedNftMinted {
			return fmt.Errorf("%w: verified NFT already minted", ErrNotEligible)
		}
	case domain.RewardTypeOg:
		if !account.OgBadge {
			return fmt.Errorf("%w: merchant does not have OG badge", ErrNotEligible)
		}
		if account.OgNftMinted {
			return fmt.Errorf("%w: OG NFT already minted", ErrNotEligible)
		}
	}
	return nil
}

// transferReward moves one unit of the reserved asset from the owner's
// holding to the merchant's, creating the merchant's holding first when it
// does not exist yet. Blocks until the ledger confirms the transfer.
func (s *Service) transferReward(ctx context.Context, reward *domain.RewardItem, merchantKey ledger.PublicKey) (string, error) {
	mint, err := ledger.ParsePublicKey(reward.Address)
	if err != nil {
		return "", fmt.Errorf("reward %d has malformed address: %w", reward.ID, err)
	}

	sourceHolding, _, err := ledger.DeriveAssociatedTokenAddress(s.signer.PublicKey, mint)
	if err != nil {
		return "", fmt.Errorf("deriving owner holding: %w", err)
	}
	destHolding, _, err := ledger.DeriveAssociatedTokenAddress(merchantKey, mint)
	if err != nil {
		return "", fmt.Errorf("deriving merchant holding: %w", err)
	}

	sourceData, err := s.gateway.GetAccountInfo(ctx, sourceHolding.String())
	if err != nil {
		return "", fmt.Errorf("fetching owner holding: %w", err)
	}
	if sourceData == nil {
		return "", ErrSourceAccountEmpty
	}
	amount, err := ledger.ParseTokenAccountAmount(sourceData)
	if err != nil {
		return "", fmt.Errorf("parsing owner holding: %w", err)
	}
	if amount < 1 {
		return "", ErrSourceAccountEmpty
	}

	var instructions []ledger.Instruction
	destData, err := s.gateway.GetAccountInfo(ctx, destHolding.String())
	if err != nil {
		return "", fmt.Errorf("fetching merchant holding: %w", err)
	}
	if destData == nil {
		instructions = append(instructions, ledger.NewCreateAssociatedTokenAccountInstruction(
			s.signer.PublicKey, merchantKey, mint, destHolding))
	}
	instructions = append(instructions, ledger.NewTokenTransferInstruction(
		sourceHolding, destHolding, s.signer.PublicKey, 1))

	return s.submitInstructions(ctx, instructions...)
}

// consumeMintRateLimit applies the per-merchant issuance limit when a limiter
// is installed. Limiter backend failures fail open.
func (s *Service) consumeMintRateLimit(ctx context.Context, merchantAddress string) error {
	if s.mintLimiter == nil || s.mintRateLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.mintLimiter.ConsumeRateLimit(ctx, "mint_nft", merchantAddress, s.mintRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=issuance msg=\"rate limiter unavailable; allowing request\" merchant=%s err=%v", merchantAddress, err)
		return nil
	}
	if count > s.mintRateLimitPerMinute {
		return fmt.Errorf("%w: retry after %ds", ErrTooManyRequests, retryAfter)
	}
	return nil
}

// advanceRun records saga progress. Run bookkeeping failures are soft.
func (s *Service) advanceRun(ctx context.Context, run *domain.IssuanceRun, step string, patch store.IssuanceRunPatch) {
	run.Step = step
	if err := s.repo.AdvanceIssuanceRun(ctx, run.ID, step, patch); err != nil {
		log.Printf("level=warn component=issuance run_id=%s msg=\"issuance run update failed\" step=%s err=%v", run.ID, step, err)
	}
}

// failRun records a terminal failure inside one of the partial-failure
// windows and publishes the reconciliation marker for it.
func (s *Service) failRun(ctx context.Context, run *domain.IssuanceRun, rewardAddress, reason string) {
	s.advanceRun(ctx, run, run.Step, store.IssuanceRunPatch{FailureReason: &reason})
	log.Printf("level=error component=issuance run_id=%s step=%s merchant=%s reward=%s msg=\"issuance stopped; manual reconciliation window\" reason=%q",
		run.ID, run.Step, run.MerchantAddress, rewardAddress, reason)
	s.publishReconcileRequired(ctx, run, rewardAddress, reason)
}

func (s *Service) publishReconcileRequired(ctx context.Context, run *domain.IssuanceRun, rewardAddress, reason string) {
	if s.events == nil {
		return
	}
	event := rabbitmq.ReconcileRequiredEvent{
		RunID:           run.ID,
		MerchantAddress: run.MerchantAddress,
		RewardType:      string(run.RewardType),
		RewardAddress:   rewardAddress,
		Step:            run.Step,
		Reason:          reason,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.events.PublishReconcileRequired(ctx, event); err != nil {
		log.Printf("level=warn component=issuance run_id=%s msg=\"reconcile event publish failed\" err=%v", run.ID, err)
	}
}

func (s *Service) publishInventoryExhausted(ctx context.Context, merchantAddress string, rewardType domain.RewardType) {
	if s.events == nil {
		return
	}
	event := rabbitmq.InventoryExhaustedEvent{
		RewardType:      string(rewardType),
		MerchantAddress: merchantAddress,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.events.PublishInventoryExhausted(ctx, event); err != nil {
		log.Printf("level=warn component=issuance msg=\"inventory exhausted event publish failed\" reward_type=%s err=%v", rewardType, err)
	}
}

func ptr(s string) *string {
	return &s
}
