/**
 * @description
 * This file contains custom middleware for the HTTP router. The loyalty-service
 * is an internal service: callers are other backend services, authenticated
 * with a shared API key rather than end-user credentials.
 *
 * @dependencies
 * - crypto/subtle, net/http, strings: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the shared internal credential.
const APIKeyHeader = "X-Internal-Api-Key"

// InternalAuthMiddleware creates a middleware that validates the internal API
// key on every request. Comparison is constant-time.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				http.Error(w, "Internal API key not configured", http.StatusServiceUnavailable)
				return
			}

			provided := []byte(strings.TrimSpace(r.Header.Get(APIKeyHeader)))
			if len(provided) == 0 {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare(expected, provided) != 1 {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
