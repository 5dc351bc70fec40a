// Package ledger provides a JSON-RPC client for the external settlement
// ledger. Calls are bounded by a per-call timeout and transient failures are
// retried with exponential backoff.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/techSaswata/sebi-bondTokenizer/internal/config"
)

// ConfirmationState classifies the outcome of a settlement lookup
type ConfirmationState string

const (
	// StateFinalized means the ledger durably recorded the settlement
	StateFinalized ConfirmationState = "finalized"
	// StatePending means the ledger has seen the settlement but not finalized it
	StatePending ConfirmationState = "pending"
	// StateNotFound means the ledger has no record of the settlement reference
	StateNotFound ConfirmationState = "not_found"
	// StateFailed means the ledger recorded the settlement as errored
	StateFailed ConfirmationState = "failed"
)

// SignatureStatus is the settlement outcome reported by the ledger for one
// settlement reference. Slot is set only when the ledger has processed it.
type SignatureStatus struct {
	State ConfirmationState
	Slot  *int64
}

// AccountState is the ledger-side view of an account
type AccountState struct {
	Exists   bool
	Lamports uint64
	Owner    string
}

// TransientError marks a failure worth retrying: timeouts, connection
// failures, and 5xx/429 responses. Callers must not treat it as a verdict
// about ledger state.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient ledger error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable ledger failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Client talks JSON-RPC 2.0 to the external ledger node
type Client struct {
	httpClient   *http.Client
	rpcURL       string
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// Option customizes the client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRPCURL overrides the RPC endpoint
func WithRPCURL(url string) Option {
	return func(c *Client) {
		c.rpcURL = url
	}
}

// NewClient creates a ledger client from cfg
func NewClient(logger *slog.Logger, cfg *config.LedgerConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		rpcURL:       cfg.RPCURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
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

// AccountExists reports whether address is present on the ledger.
// A missing account is a definitive false, not an error.
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	state, err := c.FetchAccountState(ctx, address)
	if err != nil {
		return false, err
	}
	return state.Exists, nil
}

// FetchAccountState retrieves the ledger-side state of address
func (c *Client) FetchAccountState(ctx context.Context, address string) (*AccountState, error) {
	params := []interface{}{
		address,
		map[string]string{"encoding": "base64"},
	}

	var result struct {
		Value *struct {
			Lamports uint64 `json:"lamports"`
			Owner    string `json:"owner"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return &AccountState{Exists: false}, nil
	}
	return &AccountState{
		Exists:   true,
		Lamports: result.Value.Lamports,
		Owner:    result.Value.Owner,
	}, nil
}

// GetSignatureStatus looks up the settlement outcome for reference.
// An unknown reference maps to StateNotFound, an unfinalized one to
// StatePending, and a ledger-side execution error to StateFailed.
func (c *Client) GetSignatureStatus(ctx context.Context, reference string) (*SignatureStatus, error) {
	params := []interface{}{
		[]string{reference},
		map[string]bool{"searchTransactionHistory": true},
	}

	var result struct {
		Value []*struct {
			Slot               int64           `json:"slot"`
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return &SignatureStatus{State: StateNotFound}, nil
	}

	entry := result.Value[0]
	slot := entry.Slot
	status := &SignatureStatus{Slot: &slot}

	if len(entry.Err) > 0 && string(entry.Err) != "null" {
		status.State = StateFailed
		return status, nil
	}
	if entry.ConfirmationStatus == "finalized" {
		status.State = StateFinalized
		return status, nil
	}
	status.State = StatePending
	return status, nil
}

// call executes one JSON-RPC method with retries on transient failures
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return err
			}
			c.logger.Debug("Retrying ledger call", "method", method, "attempt", attempt)
		}

		lastErr = c.doOnce(ctx, method, payload, result)
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method string, payload []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &TransientError{Op: method, Err: fmt.Errorf("ledger returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Op: method, Err: err}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s failed: %w", method, rpcResp.Error)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// sleep waits out the backoff for attempt, doubling each time with jitter
func (c *Client) sleep(ctx context.Context, attempt int) error {
	backoff := c.retryBackoff << (attempt - 1)
	backoff += time.Duration(rand.Int63n(int64(c.retryBackoff)))

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
