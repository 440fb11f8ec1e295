package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := InternalAuthMiddleware("secret-key")(next)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{name: "valid key passes through", key: "secret-key", wantStatus: http.StatusNoContent},
		{name: "surrounding whitespace is ignored", key: "  secret-key  ", wantStatus: http.StatusNoContent},
		{name: "missing key is rejected", key: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong key is rejected", key: "other-key", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/loyalty/merchants/abc", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestInternalAuthMiddleware_UnconfiguredKeyRefusesAll(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a configured key")
	})
	handler := InternalAuthMiddleware("   ")(next)

	req := httptest.NewRequest(http.MethodPost, "/loyalty/mint-nft", nil)
	req.Header.Set(APIKeyHeader, "anything")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no key is configured, got %d", rec.Code)
	}
}
