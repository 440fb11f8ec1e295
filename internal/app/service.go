/**
 * @description
 * This file contains the core business logic for the loyalty-service. The
 * `Service` struct orchestrates all cross-system operations, coordinating
 * between the ledger gateway, the reward inventory repository, and the
 * message broker. The loyalty-counter increment lives here; the reward
 * issuance saga lives in issuance.go.
 *
 * Key features:
 * - Validates externally supplied transaction references before any ledger
 *   mutation.
 * - Derives every program-owned sub-account deterministically per call; the
 *   service holds no mutable ledger state.
 * - Signs all ledger instructions with the process-wide owner credential,
 *   loaded once at startup and read-only thereafter.
 *
 * @dependencies
 * - context, fmt, log, strings, time: Standard Go libraries.
 * - internal/domain, internal/ledger, internal/store: Domain models, ledger
 *   primitives, and data access.
 * - pkg/ledgerclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/solperks/loyalty-service/internal/domain"
	"github.com/solperks/loyalty-service/internal/ledger"
	"github.com/solperks/loyalty-service/internal/store"
	"github.com/solperks/loyalty-service/pkg/ledgerclient"
	"github.com/solperks/loyalty-service/pkg/rabbitmq"
)

// RateLimiter is the distributed limiter consulted before reward issuance.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for loyalty operations.
type Service struct {
	repo      store.Repository
	gateway   ledgerclient.Gateway
	events    rabbitmq.Publisher
	signer    *ledger.Keypair
	programID ledger.PublicKey
	validator *TransactionValidator

	mintLimiter            RateLimiter
	mintRateLimitPerMinute int
}

// NewService creates a new loyalty service instance. The signer is the owner
// credential authorized to call the ledger program.
func NewService(
	repo store.Repository,
	gateway ledgerclient.Gateway,
	events rabbitmq.Publisher,
	signer *ledger.Keypair,
	programID ledger.PublicKey,
	freshnessWindow time.Duration,
) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		events:    events,
		signer:    signer,
		programID: programID,
		validator: NewTransactionValidator(gateway, freshnessWindow),
	}
}

// ConfigureMintRateLimit sets the per-merchant issuance limit. Zero disables
// limiting.
func (s *Service) ConfigureMintRateLimit(perMinute int) {
	s.mintRateLimitPerMinute = perMinute
}

// SetMintRateLimiter installs the distributed limiter backing the mint limit.
func (s *Service) SetMintRateLimiter(limiter RateLimiter) {
	s.mintLimiter = limiter
}

// IncrementTxCount increments the loyalty counters for a user/merchant pair
// after validating the supplied transaction reference. Returns the
// ledger-assigned transaction identifier. The service performs no idempotency
// de-duplication beyond the freshness check: each validated reference counts
// as one interaction.
func (s *Service) IncrementTxCount(ctx context.Context, userAddress, merchantAddress, txRef string) (string, error) {
	if strings.TrimSpace(userAddress) == "" || strings.TrimSpace(merchantAddress) == "" || strings.TrimSpace(txRef) == "" {
		return "", fmt.Errorf("%w: user address, merchant address, and transaction id are required", ErrInvalidArgument)
	}

	if _, err := s.validator.Validate(ctx, txRef); err != nil {
		return "", err
	}

	userKey, err := ledger.ParsePublicKey(userAddress)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	merchantKey, err := ledger.ParsePublicKey(merchantAddress)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	userPDA, _, err := ledger.Derive(ledger.SeedUser, &userKey, s.programID)
	if err != nil {
		return "", fmt.Errorf("deriving user account: %w", err)
	}
	merchantPDA, _, err := ledger.Derive(ledger.SeedMerchant, &merchantKey, s.programID)
	if err != nil {
		return "", fmt.Errorf("deriving merchant account: %w", err)
	}
	ownerPDA, _, err := ledger.Derive(ledger.SeedContractOwner, nil, s.programID)
	if err != nil {
		return "", fmt.Errorf("deriving contract owner account: %w", err)
	}

	ix := ledger.NewIncrementTxCountInstruction(s.programID, merchantPDA, userPDA, ownerPDA, s.signer.PublicKey)
	signature, err := s.submitInstructions(ctx, ix)
	if err != nil {
		return "", fmt.Errorf("submitting increment instruction: %w", err)
	}

	log.Printf("level=info component=loyalty op=increment_tx_count user=%s merchant=%s tx=%s", userAddress, merchantAddress, signature)
	return signature, nil
}

// GetMerchantStatus fetches and decodes a merchant's on-ledger loyalty state.
func (s *Service) GetMerchantStatus(ctx context.Context, merchantAddress string) (*domain.MerchantStatus, error) {
	if strings.TrimSpace(merchantAddress) == "" {
		return nil, fmt.Errorf("%w: merchant address is required", ErrInvalidArgument)
	}
	merchantKey, err := ledger.ParsePublicKey(merchantAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	account, err := s.fetchMerchantAccount(ctx, merchantKey)
	if err != nil {
		return nil, err
	}
	return &domain.MerchantStatus{
		MerchantAddress:   merchantAddress,
		VerifiedBadge:     account.VerifiedBadge,
		OgBadge:           account.OgBadge,
		VerifiedNftMinted: account.VerifiedNftMinted,
		OgNftMinted:       account.OgNftMinted,
		Points:            account.Points,
		TxCount:           account.TxCount,
	}, nil
}

// GetLatestBlock exposes the ledger's most recent block metadata.
func (s *Service) GetLatestBlock(ctx context.Context) (*ledgerclient.Block, error) {
	return s.gateway.GetLatestBlock(ctx)
}

// GetLatestBlockhash exposes the ledger's current blockhash.
func (s *Service) GetLatestBlockhash(ctx context.Context) (*ledgerclient.BlockhashResult, error) {
	return s.gateway.GetLatestBlockhash(ctx)
}

// fetchMerchantAccount derives the merchant sub-account and decodes its
// state.
func (s *Service) fetchMerchantAccount(ctx context.Context, merchantKey ledger.PublicKey) (*ledger.MerchantAccount, error) {
	merchantPDA, _, err := ledger.Derive(ledger.SeedMerchant, &merchantKey, s.programID)
	if err != nil {
		return nil, fmt.Errorf("deriving merchant account: %w", err)
	}
	data, err := s.gateway.GetAccountInfo(ctx, merchantPDA.String())
	if err != nil {
		return nil, fmt.Errorf("fetching merchant account: %w", err)
	}
	if data == nil {
		return nil, ErrMerchantNotFound
	}
	return ledger.DecodeMerchantAccount(data)
}

// submitInstructions builds, signs, and submits one transaction carrying the
// given instructions, blocking until the ledger confirms it.
func (s *Service) submitInstructions(ctx context.Context, instructions ...ledger.Instruction) (string, error) {
	blockhash, err := s.gateway.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching latest blockhash: %w", err)
	}
	wire, _, err := ledger.BuildSignedTransaction(instructions, blockhash.Blockhash, s.signer)
	if err != nil {
		return "", fmt.Errorf("building transaction: %w", err)
	}
	return s.gateway.SendAndConfirm(ctx, wire)
}
