/**
 * @description
 * Freshness and existence validation of externally supplied transaction
 * references. A loyalty increment is only accepted when the referenced ledger
 * transaction exists, carries a block time, and is younger than the
 * configured window.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - pkg/ledgerclient: Transaction lookup.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solperks/loyalty-service/pkg/ledgerclient"
)

// DefaultFreshnessWindow is the enforced transaction age limit. Callers
// depend on the window being this generous; tighten it only via config.
const DefaultFreshnessWindow = 3600 * time.Second

var (
	// ErrTransactionNotFound means the ledger has no record of the reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrMissingBlockTime means the ledger record carries no block time.
	ErrMissingBlockTime = errors.New("transaction block time not available")

	// ErrStaleTransaction means the referenced transaction is older than the
	// freshness window.
	ErrStaleTransaction = errors.New("old transaction")

	// ErrValidationFailed wraps transport failures during lookup, distinct
	// from a stale or absent reference.
	ErrValidationFailed = errors.New("failed to validate transaction")
)

// TransactionValidator enforces the freshness rules on transaction
// references.
type TransactionValidator struct {
	gateway ledgerclient.Gateway
	window  time.Duration
	now     func() time.Time
}

// NewTransactionValidator creates a validator with the given freshness
// window; non-positive windows fall back to the default.
func NewTransactionValidator(gateway ledgerclient.Gateway, window time.Duration) *TransactionValidator {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &TransactionValidator{
		gateway: gateway,
		window:  window,
		now:     time.Now,
	}
}

// Validate resolves the reference and checks its age. On success it returns
// the instant until which the reference would remain acceptable.
func (v *TransactionValidator) Validate(ctx context.Context, ref string) (time.Time, error) {
	record, err := v.gateway.GetTransaction(ctx, ref)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if record == nil {
		return time.Time{}, ErrTransactionNotFound
	}
	if record.BlockTime == nil {
		return time.Time{}, ErrMissingBlockTime
	}

	blockTime := time.Unix(*record.BlockTime, 0)
	age := v.now().Sub(blockTime)
	if age > v.window {
		return time.Time{}, fmt.Errorf("%w: age %s exceeds window %s", ErrStaleTransaction, age.Truncate(time.Second), v.window)
	}
	return blockTime.Add(v.window), nil
}
