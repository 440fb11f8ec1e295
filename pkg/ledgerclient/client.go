/**
 * @description
 * This package provides a client for the distributed ledger's JSON-RPC
 * endpoint. It encapsulates request construction, response parsing, and the
 * error taxonomy the orchestrator depends on: transient transport failures
 * surface as ErrUnavailable, absent accounts/transactions surface as empty
 * results, and program refusals surface as a typed rejection carrying the
 * program's reason verbatim.
 *
 * @dependencies
 * - bytes, context, encoding/base64, encoding/json, net/http, time: Standard Go libraries.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable marks transient network/RPC failures. The caller decides
// whether to retry; nothing in this package retries writes on its own.
var ErrUnavailable = errors.New("ledger rpc unavailable")

// ProgramRejectionError is returned when a submitted transaction is refused by
// the ledger program. The reason is carried verbatim and never auto-retried.
type ProgramRejectionError struct {
	Reason string
}

func (e *ProgramRejectionError) Error() string {
	return fmt.Sprintf("rejected by program: %s", e.Reason)
}

// BlockhashResult is the latest blockhash plus its validity horizon.
type BlockhashResult struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// Block is the subset of block data the service exposes.
type Block struct {
	Slot              uint64 `json:"slot"`
	Blockhash         string `json:"blockhash"`
	PreviousBlockhash string `json:"previous_blockhash"`
	ParentSlot        uint64 `json:"parent_slot"`
	BlockTime         *int64 `json:"block_time"`
}

// TransactionRecord resolves an externally supplied transaction reference.
// A nil record means the ledger has no such transaction.
type TransactionRecord struct {
	Slot      uint64
	BlockTime *int64
}

// Gateway is the read/write ledger surface consumed by the orchestrator.
// Implemented by Client; faked in tests.
type Gateway interface {
	GetLatestBlockhash(ctx context.Context) (*BlockhashResult, error)
	GetLatestBlock(ctx context.Context) (*Block, error)
	GetTransaction(ctx context.Context, ref string) (*TransactionRecord, error)
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
	SendAndConfirm(ctx context.Context, signedTx []byte) (string, error)
}

// Client talks JSON-RPC to a ledger node.
type Client struct {
	BaseURL      string
	Commitment   string
	HTTPClient   *http.Client
	confirmEvery time.Duration
	confirmMax   time.Duration
}

// NewClient creates a ledger RPC client. Commitment defaults to "confirmed",
// which is used throughout the service.
func NewClient(baseURL, commitment string) *Client {
	if strings.TrimSpace(commitment) == "" {
		commitment = "confirmed"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Commitment: commitment,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		confirmEvery: 2 * time.Second,
		confirmMax:   60 * time.Second,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call executes one RPC method and decodes the result into out (which may be
// nil when the caller only cares about success).
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", ErrUnavailable, method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=ledger_client method=%s status=%d msg=\"non-2xx rpc response\"", method, resp.StatusCode)
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", ErrUnavailable, method, err)
	}
	if rpcResp.Error != nil {
		if isProgramRejection(rpcResp.Error) {
			return &ProgramRejectionError{Reason: rejectionReason(rpcResp.Error)}
		}
		return fmt.Errorf("%w: %s: rpc error %d: %s", ErrUnavailable, method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: %s: decoding result: %v", ErrUnavailable, method, err)
		}
	}
	return nil
}

// isProgramRejection distinguishes program refusals from transport-class rpc
// errors. Preflight simulation failures carry code -32002; instruction errors
// mention the program's refusal in the message.
func isProgramRejection(e *rpcError) bool {
	if e.Code == -32002 {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "instructionerror") || strings.Contains(msg, "custom program error")
}

func rejectionReason(e *rpcError) string {
	if len(e.Data) > 0 {
		return e.Message + " " + string(e.Data)
	}
	return e.Message
}

// GetVersion probes the node's software version. Used as a non-fatal startup
// connectivity check.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"solana-core"`
	}
	if err := c.call(ctx, "getVersion", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// GetLatestBlockhash fetches the blockhash transactions must reference.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*BlockhashResult, error) {
	var result struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	params := []interface{}{map[string]string{"commitment": c.Commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	return &BlockhashResult{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// GetLatestBlock resolves the current slot and fetches that block's metadata.
func (c *Client) GetLatestBlock(ctx context.Context) (*Block, error) {
	var slot uint64
	params := []interface{}{map[string]string{"commitment": c.Commitment}}
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return nil, err
	}

	var block struct {
		Blockhash         string `json:"blockhash"`
		PreviousBlockhash string `json:"previousBlockhash"`
		ParentSlot        uint64 `json:"parentSlot"`
		BlockTime         *int64 `json:"blockTime"`
	}
	blockParams := []interface{}{slot, map[string]interface{}{
		"commitment":                     c.Commitment,
		"maxSupportedTransactionVersion": 0,
		"transactionDetails":             "none",
		"rewards":                        false,
	}}
	if err := c.call(ctx, "getBlock", blockParams, &block); err != nil {
		return nil, err
	}
	return &Block{
		Slot:              slot,
		Blockhash:         block.Blockhash,
		PreviousBlockhash: block.PreviousBlockhash,
		ParentSlot:        block.ParentSlot,
		BlockTime:         block.BlockTime,
	}, nil
}

// GetTransaction fetches a transaction by reference. A nil record (and nil
// error) means the ledger does not know the reference.
func (c *Client) GetTransaction(ctx context.Context, ref string) (*TransactionRecord, error) {
	var result *struct {
		Slot      uint64 `json:"slot"`
		BlockTime *int64 `json:"blockTime"`
	}
	params := []interface{}{ref, map[string]interface{}{
		"commitment":                     c.Commitment,
		"maxSupportedTransactionVersion": 0,
	}}
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &TransactionRecord{Slot: result.Slot, BlockTime: result.BlockTime}, nil
}

// GetAccountInfo fetches raw account state. A nil slice (and nil error) means
// the account does not exist, which is not an error for reads.
func (c *Client) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	var result struct {
		Value *struct {
			Data []string `json:"data"`
		} `json:"value"`
	}
	params := []interface{}{address, map[string]string{
		"commitment": c.Commitment,
		"encoding":   "base64",
	}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil || len(result.Value.Data) == 0 {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: getAccountInfo: decoding account data: %v", ErrUnavailable, err)
	}
	return decoded, nil
}

// SendAndConfirm submits a signed transaction and blocks until the ledger
// reports it at the client's commitment level. Returns the transaction
// signature on success.
func (c *Client) SendAndConfirm(ctx context.Context, signedTx []byte) (string, error) {
	var signature string
	params := []interface{}{base64.StdEncoding.EncodeToString(signedTx), map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": c.Commitment,
	}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.confirmMax)
	for {
		confirmed, err := c.signatureConfirmed(ctx, signature)
		if err != nil {
			return "", err
		}
		if confirmed {
			return signature, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: confirmation timed out for %s", ErrUnavailable, signature)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(c.confirmEvery):
		}
	}
}

// signatureConfirmed checks a signature's status once. A failed on-chain
// execution surfaces as a program rejection.
func (c *Client) signatureConfirmed(ctx context.Context, signature string) (bool, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []interface{}{[]string{signature}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}
	status := result.Value[0]
	if len(status.Err) > 0 && string(status.Err) != "null" {
		return false, &ProgramRejectionError{Reason: string(status.Err)}
	}
	switch status.ConfirmationStatus {
	case "confirmed", "finalized":
		return true, nil
	default:
		return false, nil
	}
}
