package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techSaswata/sebi-bondTokenizer/internal/config"
)

const (
	testAddress   = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testReference = "5UfDuX94A1QfqkQvg5WBvM3WLrXoFw5a9F6EZP1UeJvn3VbsjZ2aNiZbD9HcvDDkXK8pVWhGk2FJLMGW2SThvoJR"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := &config.LedgerConfig{
		RPCURL:       server.URL,
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	return NewClient(logger, cfg), server
}

func rpcResult(t *testing.T, result string) []byte {
	t.Helper()
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":%s}`, result))
}

func TestClient_FetchAccountState(t *testing.T) {
	t.Run("ExistingAccount", func(t *testing.T) {
		var gotMethod string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req rpcRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotMethod = req.Method
			w.Write(rpcResult(t, `{"context":{"slot":2891},"value":{"lamports":1461600,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}}`))
		}))

		state, err := client.FetchAccountState(context.Background(), testAddress)
		require.NoError(t, err)
		assert.Equal(t, "getAccountInfo", gotMethod)
		assert.True(t, state.Exists)
		assert.Equal(t, uint64(1461600), state.Lamports)
		assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", state.Owner)
	})

	t.Run("MissingAccountIsNotAnError", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(rpcResult(t, `{"context":{"slot":2891},"value":null}`))
		}))

		exists, err := client.AccountExists(context.Background(), testAddress)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestClient_GetSignatureStatus(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantState ConfirmationState
		wantSlot  *int64
	}{
		{
			name:      "FinalizedSettlement",
			value:     `[{"slot":2891,"confirmations":null,"confirmationStatus":"finalized","err":null}]`,
			wantState: StateFinalized,
			wantSlot:  ptrInt64(2891),
		},
		{
			name:      "ProcessedButNotFinalized",
			value:     `[{"slot":2891,"confirmations":12,"confirmationStatus":"confirmed","err":null}]`,
			wantState: StatePending,
			wantSlot:  ptrInt64(2891),
		},
		{
			name:      "ExecutionError",
			value:     `[{"slot":2891,"confirmationStatus":"finalized","err":{"InstructionError":[0,"Custom"]}}]`,
			wantState: StateFailed,
			wantSlot:  ptrInt64(2891),
		},
		{
			name:      "UnknownReference",
			value:     `[null]`,
			wantState: StateNotFound,
			wantSlot:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req rpcRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "getSignatureStatuses", req.Method)
				w.Write(rpcResult(t, `{"context":{"slot":3000},"value":`+tt.value+`}`))
			}))

			status, err := client.GetSignatureStatus(context.Background(), testReference)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, status.State)
			if tt.wantSlot == nil {
				assert.Nil(t, status.Slot)
			} else {
				require.NotNil(t, status.Slot)
				assert.Equal(t, *tt.wantSlot, *status.Slot)
			}
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(rpcResult(t, `{"context":{"slot":2891},"value":{"lamports":1,"owner":"11111111111111111111111111111111"}}`))
	}))

	exists, err := client.AccountExists(context.Background(), testAddress)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ExhaustsRetriesOnPersistentFailure(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.AccountExists(context.Background(), testAddress)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus MaxRetries")
}

func TestClient_RPCErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param: WrongSize"}}`))
	}))

	_, err := client.AccountExists(context.Background(), testAddress)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "Invalid param")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCancellationStopsRetries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.AccountExists(ctx, testAddress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || IsTransient(err))
}

func ptrInt64(v int64) *int64 {
	return &v
}
