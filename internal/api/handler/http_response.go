package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/ledger"
)

// Response is the standard API envelope. Success responses carry data and,
// for listings, pagination; error responses carry a message.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the window a listing response covers
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// RespondWithData sends a success envelope with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondPage sends a 200 OK response with data and pagination
func RespondPage(c *gin.Context, data interface{}, page shared.Page, total int64) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Total:   total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore(total),
		},
	})
}

// RespondWithError sends an error envelope
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{Success: false, Error: message})
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, message)
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, message)
}

// RespondConflict sends a 409 Conflict response
func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, message)
}

// RespondServiceUnavailable sends a 503 Service Unavailable response
func RespondServiceUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, message)
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "An internal server error occurred")
}

// respondDomainError maps service-layer errors onto HTTP statuses.
// Validation failures are 400, missing records 404, state conflicts 409, and
// transient ledger failures 503. Everything else is an internal error.
func respondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	var marketValidation market.ValidationError
	var tradeValidation trade.ValidationError
	var marketNotFound market.ErrMarketNotFound
	var txnNotFound trade.ErrTransactionNotFound
	var capacity market.ErrCapacityExceeded
	var accountMismatch market.ErrLedgerAccountMismatch
	var marketTransition market.ErrInvalidStatusTransition
	var tradeTransition trade.ErrInvalidTransition

	switch {
	case errors.As(err, &marketValidation), errors.As(err, &tradeValidation):
		RespondBadRequest(c, err.Error())
	case errors.As(err, &marketNotFound), errors.As(err, &txnNotFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &capacity), errors.As(err, &accountMismatch),
		errors.As(err, &marketTransition), errors.As(err, &tradeTransition):
		RespondConflict(c, err.Error())
	case ledger.IsTransient(err):
		logger.Warn("Ledger temporarily unavailable", "error", err)
		RespondServiceUnavailable(c, "The settlement ledger is temporarily unavailable")
	default:
		logger.Error("Unhandled service error", "error", err)
		RespondInternalError(c)
	}
}
