/**
 * @description
 * This file contains the HTTP handlers for the loyalty-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Error mapping: caller mistakes and business refusals (bad input, stale or
 * unknown transaction references, missing merchant account, eligibility
 * refusals) come back as 400; operational conditions an operator must act on
 * (exhausted inventory, empty owner holding) as 409; the rate limit as 429;
 * ledger program rejections and unreachable dependencies as 502/503.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and
 *   custom errors.
 * - pkg/ledgerclient: Gateway error classification.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/solperks/loyalty-service/internal/app"
	"github.com/solperks/loyalty-service/internal/domain"
	"github.com/solperks/loyalty-service/internal/store"
	"github.com/solperks/loyalty-service/pkg/ledgerclient"
)

// LoyaltyHandlers holds the application service that handlers will use.
type LoyaltyHandlers struct {
	service *app.Service
}

// NewLoyaltyHandlers creates a new instance of LoyaltyHandlers.
func NewLoyaltyHandlers(service *app.Service) *LoyaltyHandlers {
	return &LoyaltyHandlers{service: service}
}

// incrementTxCountResponse mirrors what callers read after a successful
// loyalty increment: the ledger-assigned transaction identifier.
type incrementTxCountResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

// mintNftResponse is sent back after a completed reward issuance.
type mintNftResponse struct {
	Message           string `json:"message"`
	NftType           string `json:"nft_type"`
	NftAddress        string `json:"nft_address"`
	TransferSignature string `json:"transfer_signature"`
	TransactionID     string `json:"transaction_id"`
}

// IncrementTransactionHandler handles requests to increment the loyalty
// counters for a user/merchant pair.
func (h *LoyaltyHandlers) IncrementTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.IncrementTxCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=increment_transaction outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	signature, err := h.service.IncrementTxCount(r.Context(), req.UserAddress, req.MerchantAddress, req.TransactionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=increment_transaction outcome=failed user=%s merchant=%s err=%v", req.UserAddress, req.MerchantAddress, err)
		switch {
		case errors.Is(err, app.ErrInvalidArgument),
			errors.Is(err, app.ErrTransactionNotFound),
			errors.Is(err, app.ErrMissingBlockTime),
			errors.Is(err, app.ErrStaleTransaction):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrValidationFailed):
			h.writeError(w, http.StatusBadGateway, "Unable to validate transaction against the ledger")
		default:
			h.writeGatewayError(w, "increment_transaction", err)
		}
		return
	}

	log.Printf("level=info component=api endpoint=increment_transaction outcome=ok user=%s merchant=%s tx=%s", req.UserAddress, req.MerchantAddress, signature)
	h.writeJSON(w, http.StatusOK, incrementTxCountResponse{
		Message:       "Transaction count incremented",
		TransactionID: signature,
	})
}

// MintNftHandler handles reward issuance requests for badge-holding merchants.
func (h *LoyaltyHandlers) MintNftHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.MintNftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=mint_nft outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.Issue(r.Context(), req.MerchantAddress, req.NftType)
	if err != nil {
		log.Printf("level=warn component=api endpoint=mint_nft outcome=failed merchant=%s nft_type=%s err=%v", req.MerchantAddress, req.NftType, err)
		switch {
		case errors.Is(err, app.ErrInvalidArgument),
			errors.Is(err, app.ErrNotEligible),
			errors.Is(err, app.ErrMerchantNotFound):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNoInventory):
			// Provisioning problem: operators must load more reward items.
			log.Printf("level=error component=api endpoint=mint_nft alert=inventory_exhausted nft_type=%s", req.NftType)
			h.writeError(w, http.StatusConflict, "No rewards of the requested type are available")
		case errors.Is(err, app.ErrSourceAccountEmpty):
			log.Printf("level=error component=api endpoint=mint_nft alert=source_account_empty nft_type=%s", req.NftType)
			h.writeError(w, http.StatusConflict, "Reward source account is empty")
		case errors.Is(err, app.ErrTooManyRequests):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.writeGatewayError(w, "mint_nft", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, mintNftResponse{
		Message:           "NFT minted successfully",
		NftType:           string(receipt.RewardType),
		NftAddress:        receipt.RewardAddress,
		TransferSignature: receipt.TransferSignature,
		TransactionID:     receipt.OnChainTx,
	})
}

// MerchantStatusHandler returns a merchant's on-ledger loyalty state.
func (h *LoyaltyHandlers) MerchantStatusHandler(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "Merchant address is required")
		return
	}

	status, err := h.service.GetMerchantStatus(r.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidArgument):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrMerchantNotFound):
			h.writeError(w, http.StatusNotFound, "Merchant account not found")
		default:
			h.writeGatewayError(w, "merchant_status", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// LatestBlockHandler returns the ledger's most recent block metadata.
func (h *LoyaltyHandlers) LatestBlockHandler(w http.ResponseWriter, r *http.Request) {
	block, err := h.service.GetLatestBlock(r.Context())
	if err != nil {
		h.writeGatewayError(w, "latest_block", err)
		return
	}
	h.writeJSON(w, http.StatusOK, block)
}

// LatestBlockhashHandler returns the ledger's current blockhash.
func (h *LoyaltyHandlers) LatestBlockhashHandler(w http.ResponseWriter, r *http.Request) {
	blockhash, err := h.service.GetLatestBlockhash(r.Context())
	if err != nil {
		h.writeGatewayError(w, "latest_blockhash", err)
		return
	}
	h.writeJSON(w, http.StatusOK, blockhash)
}

// writeGatewayError maps infrastructure failures onto the response. Ledger
// program rejections surface as 502 with the program's reason; unreachable
// dependencies as 503; everything else as a plain 500.
func (h *LoyaltyHandlers) writeGatewayError(w http.ResponseWriter, endpoint string, err error) {
	var rejection *ledgerclient.ProgramRejectionError
	switch {
	case errors.As(err, &rejection):
		log.Printf("level=error component=api endpoint=%s outcome=program_rejection reason=%q", endpoint, rejection.Reason)
		h.writeError(w, http.StatusBadGateway, "Ledger program rejected the transaction")
	case errors.Is(err, ledgerclient.ErrUnavailable):
		log.Printf("level=error component=api endpoint=%s outcome=ledger_unavailable err=%v", endpoint, err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger is unavailable")
	case errors.Is(err, store.ErrStoreUnavailable):
		log.Printf("level=error component=api endpoint=%s outcome=store_unavailable err=%v", endpoint, err)
		h.writeError(w, http.StatusServiceUnavailable, "Reward store is unavailable")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LoyaltyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LoyaltyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
