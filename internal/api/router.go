/**
 * @description
 * This file sets up the HTTP router for the loyalty-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies any necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LoyaltyRoutes creates and returns a new router for the loyalty service.
func LoyaltyRoutes(h *LoyaltyHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		// All endpoints are internal; callers present the shared API key.
		r.Use(InternalAuthMiddleware(internalAPIKey))

		// Loyalty program endpoints.
		r.Post("/loyalty/increment-transaction", h.IncrementTransactionHandler)
		r.Post("/loyalty/mint-nft", h.MintNftHandler)
		r.Get("/loyalty/merchants/{address}", h.MerchantStatusHandler)

		// Ledger passthrough endpoints.
		r.Get("/ledger/latest-block", h.LatestBlockHandler)
		r.Get("/ledger/latest-blockhash", h.LatestBlockhashHandler)
	})

	return r
}
