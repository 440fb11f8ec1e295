/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface: reward inventory selection/consumption and issuance-run
 * persistence.
 *
 * Reservation is a single conditional UPDATE: the row is checked unreserved
 * and set reserved in one statement, with SKIP LOCKED on the inner selection,
 * so two concurrent issuance runs for the same reward category can never
 * double-allocate an item.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/solperks/loyalty-service/internal/domain"
)

var (
	// ErrNoInventory means zero unreserved rewards of the requested type exist.
	// A caller error, but worth operator alerting: it signals a provisioning
	// gap, not a usage mistake.
	ErrNoInventory = errors.New("no unreserved reward inventory for type")

	// ErrStoreUnavailable wraps backend failures of the off-chain store.
	ErrStoreUnavailable = errors.New("reward store unavailable")
)

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ReserveReward claims one unreserved reward of the given type. Selection and
// reservation happen in one statement; SKIP LOCKED keeps concurrent claims
// from blocking on (or both reading) the same row.
func (r *PostgresRepository) ReserveReward(ctx context.Context, rewardType domain.RewardType) (*domain.RewardItem, error) {
	query := `
		UPDATE reward_inventory
		SET reserved = TRUE, reserved_at = NOW()
		WHERE id = (
			SELECT id FROM reward_inventory
			WHERE reserved = FALSE AND reward_type = $1
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, nft_address, reward_type, reserved, consumed, reserved_at, consumed_at
	`
	var item domain.RewardItem
	err := r.db.QueryRow(ctx, query, string(rewardType)).Scan(
		&item.ID,
		&item.Address,
		&item.RewardType,
		&item.Reserved,
		&item.Consumed,
		&item.ReservedAt,
		&item.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoInventory
		}
		return nil, fmt.Errorf("%w: reserving reward: %v", ErrStoreUnavailable, err)
	}
	return &item, nil
}

// MarkRewardConsumed flags a reward as consumed. Marking an already-consumed
// address affects zero rows and is not an error.
func (r *PostgresRepository) MarkRewardConsumed(ctx context.Context, address string) error {
	query := `
		UPDATE reward_inventory
		SET consumed = TRUE, consumed_at = COALESCE(consumed_at, NOW())
		WHERE nft_address = $1
	`
	if _, err := r.db.Exec(ctx, query, address); err != nil {
		return fmt.Errorf("%w: marking reward consumed: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// CreateIssuanceRun inserts a new saga record.
func (r *PostgresRepository) CreateIssuanceRun(ctx context.Context, run *domain.IssuanceRun) error {
	query := `
		INSERT INTO issuance_runs (id, merchant_address, reward_type, step, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := r.db.Exec(ctx, query, run.ID, run.MerchantAddress, string(run.RewardType), run.Step); err != nil {
		return fmt.Errorf("%w: creating issuance run: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AdvanceIssuanceRun records the furthest completed step of a run plus any
// artifacts produced by that step.
func (r *PostgresRepository) AdvanceIssuanceRun(ctx context.Context, runID uuid.UUID, step string, patch IssuanceRunPatch) error {
	query := `
		UPDATE issuance_runs
		SET step = $2,
			reward_address = COALESCE($3, reward_address),
			transfer_signature = COALESCE($4, transfer_signature),
			on_chain_tx = COALESCE($5, on_chain_tx),
			failure_reason = COALESCE($6, failure_reason),
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, runID, step,
		patch.RewardAddress, patch.TransferSignature, patch.OnChainTx, patch.FailureReason)
	if err != nil {
		return fmt.Errorf("%w: advancing issuance run: %v", ErrStoreUnavailable, err)
	}
	return nil
}
