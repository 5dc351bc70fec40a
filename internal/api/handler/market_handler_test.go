package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
)

const (
	testIssuer        = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testMarketAccount = "So11111111111111111111111111111111111111112"
	testBondMint      = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockMarketRegistry mocks service.MarketRegistry
type MockMarketRegistry struct {
	mock.Mock
}

func (m *MockMarketRegistry) CreateMarket(ctx context.Context, spec market.CreateSpec) (*market.Market, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Market), args.Error(1)
}

func (m *MockMarketRegistry) GetMarket(ctx context.Context, id uuid.UUID) (*market.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Market), args.Error(1)
}

func (m *MockMarketRegistry) ListMarkets(ctx context.Context, filter market.Filter, page shared.Page) ([]*market.Market, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*market.Market), args.Get(1).(int64), args.Error(2)
}

func (m *MockMarketRegistry) AttachLedgerAccounts(ctx context.Context, id uuid.UUID, marketAccount, bondMint string) (*market.Market, error) {
	args := m.Called(ctx, id, marketAccount, bondMint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Market), args.Error(1)
}

func (m *MockMarketRegistry) RecordSale(ctx context.Context, id uuid.UUID, delta int64) (*market.Market, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Market), args.Error(1)
}

func (m *MockMarketRegistry) SetStatus(ctx context.Context, id uuid.UUID, next market.Status) (*market.Market, error) {
	args := m.Called(ctx, id, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Market), args.Error(1)
}

func setupMarketRouter(registry *MockMarketRegistry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewMarketHandler(newTestLogger(), registry)
	router.POST("/markets", h.Create)
	router.GET("/markets", h.List)
	router.GET("/markets/:marketId", h.GetByID)
	router.PUT("/markets/:marketId/ledger-accounts", h.AttachLedgerAccounts)
	router.PUT("/markets/:marketId/status", h.UpdateStatus)
	return router
}

func decodeResponse(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

func TestMarketHandler_Create(t *testing.T) {
	t.Run("Returns201WithEnvelope", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		created := &market.Market{MarketID: uuid.New(), Issuer: testIssuer, Status: market.StatusActive}
		registry.On("CreateMarket", mock.Anything, mock.AnythingOfType("market.CreateSpec")).Return(created, nil).Once()

		body := fmt.Sprintf(`{
			"issuer": %q,
			"bondName": "NCD Series A 2030",
			"bondSymbol": "NCDA30",
			"totalSupply": 100000,
			"faceValue": 100000,
			"currentPrice": 98500,
			"couponRate": 9.25,
			"maturityDate": %q
		}`, testIssuer, time.Now().Add(24*time.Hour).Format(time.RFC3339))

		req, _ := http.NewRequest(http.MethodPost, "/markets", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		resp := decodeResponse(t, rr.Body)
		assert.Equal(t, true, resp["success"])
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, created.MarketID.String(), data["marketId"])
		registry.AssertExpectations(t)
	})

	t.Run("Returns400OnValidationError", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		registry.On("CreateMarket", mock.Anything, mock.AnythingOfType("market.CreateSpec")).
			Return(nil, market.ValidationError{Field: "maturityDate", Reason: "must be in the future"}).Once()

		body := fmt.Sprintf(`{
			"issuer": %q,
			"bondName": "NCD Series A 2030",
			"bondSymbol": "NCDA30",
			"maturityDate": %q
		}`, testIssuer, time.Now().Add(-24*time.Hour).Format(time.RFC3339))

		req, _ := http.NewRequest(http.MethodPost, "/markets", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr.Body)
		assert.Equal(t, false, resp["success"])
		assert.Contains(t, resp["error"], "maturityDate")
	})

	t.Run("Returns400OnMissingRequiredFields", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		req, _ := http.NewRequest(http.MethodPost, "/markets", bytes.NewBufferString(`{}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		registry.AssertNotCalled(t, "CreateMarket", mock.Anything, mock.Anything)
	})
}

func TestMarketHandler_GetByID(t *testing.T) {
	t.Run("Returns404WhenMissing", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		id := uuid.New()
		registry.On("GetMarket", mock.Anything, id).Return(nil, market.ErrMarketNotFound{MarketID: id}).Once()

		req, _ := http.NewRequest(http.MethodGet, "/markets/"+id.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		resp := decodeResponse(t, rr.Body)
		assert.Equal(t, false, resp["success"])
	})

	t.Run("Returns400OnMalformedID", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		req, _ := http.NewRequest(http.MethodGet, "/markets/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		registry.AssertNotCalled(t, "GetMarket", mock.Anything, mock.Anything)
	})
}

func TestMarketHandler_List(t *testing.T) {
	t.Run("ReturnsPaginationEnvelope", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		markets := []*market.Market{{MarketID: uuid.New()}, {MarketID: uuid.New()}}
		registry.On("ListMarkets", mock.Anything,
			market.Filter{Issuer: testIssuer, Status: market.StatusActive},
			shared.Page{Limit: 2, Offset: 0},
		).Return(markets, int64(5), nil).Once()

		req, _ := http.NewRequest(http.MethodGet, "/markets?issuer="+testIssuer+"&status=active&limit=2", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeResponse(t, rr.Body)
		assert.Equal(t, true, resp["success"])
		pagination := resp["pagination"].(map[string]interface{})
		assert.Equal(t, float64(5), pagination["total"])
		assert.Equal(t, float64(2), pagination["limit"])
		assert.Equal(t, float64(0), pagination["offset"])
		assert.Equal(t, true, pagination["hasMore"])
		registry.AssertExpectations(t)
	})

	t.Run("Returns400OnUnknownStatusFilter", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		req, _ := http.NewRequest(http.MethodGet, "/markets?status=archived", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		registry.AssertNotCalled(t, "ListMarkets", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("EmptyResultIsAnEmptyArray", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		registry.On("ListMarkets", mock.Anything, market.Filter{}, shared.Page{Limit: 20, Offset: 0}).
			Return(nil, int64(0), nil).Once()

		req, _ := http.NewRequest(http.MethodGet, "/markets", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeResponse(t, rr.Body)
		data, ok := resp["data"].([]interface{})
		require.True(t, ok, "data should be a JSON array, not null")
		assert.Empty(t, data)
	})
}

func TestMarketHandler_AttachLedgerAccounts(t *testing.T) {
	id := uuid.New()
	body := fmt.Sprintf(`{"marketAccount": %q, "bondMint": %q}`, testMarketAccount, testBondMint)

	t.Run("Returns200OnBind", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		bound := &market.Market{MarketID: id, MarketAccount: testMarketAccount, BondMint: testBondMint}
		registry.On("AttachLedgerAccounts", mock.Anything, id, testMarketAccount, testBondMint).Return(bound, nil).Once()

		req, _ := http.NewRequest(http.MethodPut, "/markets/"+id.String()+"/ledger-accounts", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeResponse(t, rr.Body)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, testMarketAccount, data["marketAccount"])
	})

	t.Run("Returns409OnMismatch", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		registry.On("AttachLedgerAccounts", mock.Anything, id, testMarketAccount, testBondMint).
			Return(nil, market.ErrLedgerAccountMismatch{MarketID: id}).Once()

		req, _ := http.NewRequest(http.MethodPut, "/markets/"+id.String()+"/ledger-accounts", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestMarketHandler_UpdateStatus(t *testing.T) {
	id := uuid.New()

	t.Run("Returns200OnTransition", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		paused := &market.Market{MarketID: id, Status: market.StatusPaused}
		registry.On("SetStatus", mock.Anything, id, market.StatusPaused).Return(paused, nil).Once()

		req, _ := http.NewRequest(http.MethodPut, "/markets/"+id.String()+"/status", bytes.NewBufferString(`{"status":"paused"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeResponse(t, rr.Body)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "paused", data["status"])
	})

	t.Run("Returns409OnIllegalTransition", func(t *testing.T) {
		registry := new(MockMarketRegistry)
		router := setupMarketRouter(registry)

		registry.On("SetStatus", mock.Anything, id, market.StatusActive).
			Return(nil, market.ErrInvalidStatusTransition{MarketID: id, From: market.StatusMatured, To: market.StatusActive}).Once()

		req, _ := http.NewRequest(http.MethodPut, "/markets/"+id.String()+"/status", bytes.NewBufferString(`{"status":"active"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
