package ledgerclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// rpcStub serves canned JSON-RPC results keyed by method name.
func rpcStub(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode rpc request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			t.Fatalf("unexpected rpc method %q", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func TestClient_GetTransaction(t *testing.T) {
	server := rpcStub(t, map[string]string{
		"getTransaction": `{"slot":5812,"blockTime":1700000000}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "")
	record, err := client.GetTransaction(context.Background(), "some-ref")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if record.Slot != 5812 {
		t.Fatalf("expected slot 5812, got %d", record.Slot)
	}
	if record.BlockTime == nil || *record.BlockTime != 1700000000 {
		t.Fatalf("unexpected block time %v", record.BlockTime)
	}
}

func TestClient_GetTransaction_AbsentIsNilNotError(t *testing.T) {
	server := rpcStub(t, map[string]string{"getTransaction": `null`})
	defer server.Close()

	client := NewClient(server.URL, "")
	record, err := client.GetTransaction(context.Background(), "unknown-ref")
	if err != nil {
		t.Fatalf("absent transaction must not be an error, got %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for unknown reference, got %+v", record)
	}
}

func TestClient_GetAccountInfo(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	server := rpcStub(t, map[string]string{
		"getAccountInfo": `{"value":{"data":["` + payload + `","base64"]}}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "confirmed")
	data, err := client.GetAccountInfo(context.Background(), "some-address")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(data) != 4 || data[0] != 1 {
		t.Fatalf("unexpected account bytes %v", data)
	}
}

func TestClient_GetAccountInfo_AbsentIsNilNotError(t *testing.T) {
	server := rpcStub(t, map[string]string{"getAccountInfo": `{"value":null}`})
	defer server.Close()

	client := NewClient(server.URL, "")
	data, err := client.GetAccountInfo(context.Background(), "missing-address")
	if err != nil {
		t.Fatalf("absent account must not be an error, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil data for absent account, got %v", data)
	}
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "")
	client.HTTPClient.Timeout = time.Second

	_, err := client.GetLatestBlockhash(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unreachable node, got %v", err)
	}
}

func TestClient_ProgramRejectionClassification(t *testing.T) {
	tests := []struct {
		name string
		err  rpcError
		want bool
	}{
		{name: "preflight simulation failure", err: rpcError{Code: -32002, Message: "Transaction simulation failed"}, want: true},
		{name: "instruction error in message", err: rpcError{Code: -32602, Message: "InstructionError [0, Custom(6001)]"}, want: true},
		{name: "custom program error in message", err: rpcError{Code: -32602, Message: "failed: custom program error: 0x1771"}, want: true},
		{name: "plain transport error", err: rpcError{Code: -32005, Message: "Node is behind"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isProgramRejection(&tt.err); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestClient_SendAndConfirm_ProgramFailureSurfacesReason(t *testing.T) {
	server := rpcStub(t, map[string]string{
		"sendTransaction":      `"fake-signature"`,
		"getSignatureStatuses": `{"value":[{"confirmationStatus":"processed","err":{"InstructionError":[0,{"Custom":6001}]}}]}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.SendAndConfirm(context.Background(), []byte{1, 2, 3})

	var rejection *ProgramRejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected ProgramRejectionError, got %v", err)
	}
}

func TestClient_SendAndConfirm_ReturnsSignatureOnceConfirmed(t *testing.T) {
	server := rpcStub(t, map[string]string{
		"sendTransaction":      `"fake-signature"`,
		"getSignatureStatuses": `{"value":[{"confirmationStatus":"confirmed","err":null}]}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "")
	signature, err := client.SendAndConfirm(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if signature != "fake-signature" {
		t.Fatalf("expected submitted signature back, got %q", signature)
	}
}
