package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mintix/internal/shared/config"
	"mintix/pkg/logger"
)

var (
	ErrAllEndpointsFailed  = errors.New("all rpc endpoints failed")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	ErrPaymentMismatch     = errors.New("payment does not match expected transfer")
)

// Client is a minimal Solana JSON-RPC client. It rotates between the
// configured endpoints on rate limits and transport failures, which is enough
// to ride out the free-tier limits of public RPC providers.
type Client struct {
	endpoints  []string
	commitment string
	maxRetries int
	baseDelay  time.Duration

	confirmTimeout time.Duration
	pollInterval   time.Duration

	httpClient *http.Client
	logger     *logger.Logger

	mu  sync.Mutex
	idx int
}

func NewClient(cfg config.SolanaConfig) *Client {
	return &Client{
		endpoints:      cfg.Endpoints,
		commitment:     cfg.Commitment,
		maxRetries:     cfg.MaxRetries,
		baseDelay:      cfg.RetryBaseDelay,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		logger:         logger.GetDefault(),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// currentEndpoint returns the endpoint in rotation without advancing it.
func (c *Client) currentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.idx%len(c.endpoints)]
}

// rotate moves to the next endpoint after a failure.
func (c *Client) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx = (c.idx + 1) % len(c.endpoints)
}

// call performs one JSON-RPC method with retry and endpoint rotation.
// Rate-limit (429) and server errors move to the next endpoint with
// exponential backoff; RPC-level errors are returned as-is.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	var lastErr error
	attempts := c.maxRetries * len(c.endpoints)
	if attempts < 1 {
		attempts = len(c.endpoints)
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		endpoint := c.currentEndpoint()
		resp, err := c.doRequest(ctx, endpoint, body)
		if err != nil {
			c.logger.Warn("rpc request failed",
				slog.String("endpoint", endpoint),
				slog.String("method", method),
				slog.Any("error", err),
			)
			lastErr = err
			c.rotate()
			continue
		}

		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		io.Copy(io.Discard, httpResp.Body)
		return nil, fmt.Errorf("endpoint returned status %d", httpResp.StatusCode)
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	return &resp, nil
}

// SignatureStatus mirrors the fields of getSignatureStatuses we care about.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// GetSignatureStatus fetches the confirmation status for one signature.
// Returns nil status when the cluster does not know the signature yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": true},
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// WaitForConfirmation polls until the signature reaches the configured
// commitment level or the confirm timeout elapses.
func (c *Client) WaitForConfirmation(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if status != nil {
			if status.Err != nil {
				return ErrTransactionFailed
			}
			if c.reached(status.ConfirmationStatus) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}

// reached reports whether the observed commitment satisfies the configured one.
func (c *Client) reached(observed string) bool {
	rank := map[string]int{"processed": 0, "confirmed": 1, "finalized": 2}
	want, ok := rank[c.commitment]
	if !ok {
		want = rank["confirmed"]
	}
	got, ok := rank[observed]
	if !ok {
		return false
	}
	return got >= want
}

type transactionMeta struct {
	Err          interface{} `json:"err"`
	PreBalances  []uint64    `json:"preBalances"`
	PostBalances []uint64    `json:"postBalances"`
}

type transactionResult struct {
	Meta        *transactionMeta `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// VerifyPayment confirms that the transaction moved at least the expected
// lamports from payer to recipient and landed without error. The balance
// delta check tolerates the payer also covering the network fee.
func (c *Client) VerifyPayment(ctx context.Context, signature, payer, recipient string, lamports uint64) error {
	if err := c.WaitForConfirmation(ctx, signature); err != nil {
		return err
	}

	var tx *transactionResult
	params := []interface{}{
		signature,
		map[string]interface{}{
			"commitment":                     c.commitment,
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}
	if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
		return err
	}
	if tx == nil || tx.Meta == nil {
		return ErrTransactionNotFound
	}
	if tx.Meta.Err != nil {
		return ErrTransactionFailed
	}

	keys := tx.Transaction.Message.AccountKeys
	payerIdx, recipientIdx := -1, -1
	for i, key := range keys {
		if key == payer {
			payerIdx = i
		}
		if key == recipient {
			recipientIdx = i
		}
	}
	if payerIdx < 0 || recipientIdx < 0 {
		return ErrPaymentMismatch
	}
	if recipientIdx >= len(tx.Meta.PreBalances) || recipientIdx >= len(tx.Meta.PostBalances) {
		return ErrPaymentMismatch
	}

	received := int64(tx.Meta.PostBalances[recipientIdx]) - int64(tx.Meta.PreBalances[recipientIdx])
	if received < int64(lamports) {
		return fmt.Errorf("%w: expected %d lamports, got %d", ErrPaymentMismatch, lamports, received)
	}

	return nil
}
