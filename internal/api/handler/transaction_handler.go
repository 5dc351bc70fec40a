package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
	"github.com/techSaswata/sebi-bondTokenizer/internal/service"
)

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	ledger service.TransactionLedger
	logger *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, ledger service.TransactionLedger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Create records a pending trade intent. A replay of an already-recorded
// settlement reference returns the stored record with 200 instead of 201.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	marketID, err := uuid.Parse(req.MarketID)
	if err != nil {
		RespondBadRequest(c, "Invalid market ID")
		return
	}

	txn, created, err := h.ledger.RecordIntent(c.Request.Context(), trade.IntentSpec{
		MarketID:            marketID,
		Buyer:               req.Buyer,
		Seller:              req.Seller,
		TransactionType:     trade.Type(req.TransactionType),
		BondQuantity:        req.BondQuantity,
		PricePerBond:        req.PricePerBond,
		SettlementReference: req.SettlementReference,
	})
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	if created {
		RespondCreated(c, txn)
		return
	}
	RespondOK(c, txn)
}

// GetByID retrieves a transaction by its ID, returning 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.ledger.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, txn)
}

// List retrieves transactions filtered by market, party, type, and status
// with pagination
func (h *TransactionHandler) List(c *gin.Context) {
	filter := trade.Filter{
		Buyer:           c.Query("buyer"),
		Seller:          c.Query("seller"),
		TransactionType: trade.Type(c.Query("transactionType")),
		Status:          trade.Status(c.Query("status")),
	}

	if raw := c.Query("marketId"); raw != "" {
		marketID, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid market ID filter")
			return
		}
		filter.MarketID = marketID
	}
	if filter.TransactionType != "" && !filter.TransactionType.IsValid() {
		RespondBadRequest(c, "Invalid transaction type filter")
		return
	}
	page := parsePage(c)

	txns, total, err := h.ledger.ListTransactions(c.Request.Context(), filter, page)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}
	if txns == nil {
		txns = []*trade.Transaction{}
	}

	RespondPage(c, txns, page, total)
}

// UpdateStatus resolves a pending settlement to confirmed or failed.
// Confirming applies the transaction's supply delta to its market; resolving
// an already-terminal transaction returns 409.
func (h *TransactionHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req UpdateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var txn *trade.Transaction
	switch trade.Status(req.Status) {
	case trade.StatusConfirmed:
		txn, err = h.ledger.ConfirmSettlement(c.Request.Context(), id, req.BlockNumber)
	case trade.StatusFailed:
		txn, err = h.ledger.MarkFailed(c.Request.Context(), id)
	default:
		RespondBadRequest(c, "Status must be 'confirmed' or 'failed'")
		return
	}
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, txn)
}
