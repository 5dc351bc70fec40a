package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/service"
)

// MarketHandler handles HTTP requests for market operations
type MarketHandler struct {
	registry service.MarketRegistry
	logger   *slog.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(logger *slog.Logger, registry service.MarketRegistry) *MarketHandler {
	return &MarketHandler{
		registry: registry,
		logger:   logger,
	}
}

// Create handles creation of a new market
func (h *MarketHandler) Create(c *gin.Context) {
	var req CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.registry.CreateMarket(c.Request.Context(), market.CreateSpec{
		Issuer:       req.Issuer,
		BondName:     req.BondName,
		BondSymbol:   req.BondSymbol,
		TotalSupply:  req.TotalSupply,
		FaceValue:    req.FaceValue,
		CurrentPrice: req.CurrentPrice,
		CouponRate:   req.CouponRate,
		MaturityDate: req.MaturityDate,
	})
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, m)
}

// GetByID retrieves a market by its ID, returning 404 if not found
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("marketId"))
	if err != nil {
		RespondBadRequest(c, "Invalid market ID")
		return
	}

	m, err := h.registry.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, m)
}

// List retrieves markets filtered by issuer and status with pagination
func (h *MarketHandler) List(c *gin.Context) {
	filter := market.Filter{
		Issuer: c.Query("issuer"),
		Status: market.Status(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		RespondBadRequest(c, "Invalid status filter")
		return
	}
	page := parsePage(c)

	markets, total, err := h.registry.ListMarkets(c.Request.Context(), filter, page)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}
	if markets == nil {
		markets = []*market.Market{}
	}

	RespondPage(c, markets, page, total)
}

// AttachLedgerAccounts binds on-chain addresses to a market after verifying
// them against the external ledger. Replays with identical addresses return
// the market unchanged; differing addresses return 409.
func (h *MarketHandler) AttachLedgerAccounts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("marketId"))
	if err != nil {
		RespondBadRequest(c, "Invalid market ID")
		return
	}

	var req AttachLedgerAccountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.registry.AttachLedgerAccounts(c.Request.Context(), id, req.MarketAccount, req.BondMint)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, m)
}

// UpdateStatus transitions a market through its status machine
func (h *MarketHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("marketId"))
	if err != nil {
		RespondBadRequest(c, "Invalid market ID")
		return
	}

	var req UpdateMarketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.registry.SetStatus(c.Request.Context(), id, market.Status(req.Status))
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, m)
}
