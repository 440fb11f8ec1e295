/**
 * @description
 * Sentinel errors for the orchestration layer. The API layer maps these onto
 * the two caller-facing classes: bad input / business refusal versus
 * internal / unavailable.
 */

package app

import "errors"

var (
	// ErrInvalidArgument marks malformed or missing caller input. Never
	// retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotEligible is the business-rule refusal for reward issuance,
	// surfaced verbatim to the caller.
	ErrNotEligible = errors.New("not eligible to mint NFT")

	// ErrMerchantNotFound means the merchant has no account on the ledger.
	ErrMerchantNotFound = errors.New("merchant account not found on ledger")

	// ErrSourceAccountEmpty means the owner's holding for the reserved reward
	// has no units left. A provisioning problem worth operator attention.
	ErrSourceAccountEmpty = errors.New("owner reward holding is empty")

	// ErrTooManyRequests marks a merchant exceeding the mint rate limit.
	ErrTooManyRequests = errors.New("too many mint requests")
)
