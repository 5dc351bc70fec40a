package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techSaswata/sebi-bondTokenizer/internal/api/handler"
	"github.com/techSaswata/sebi-bondTokenizer/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	marketHandler *handler.MarketHandler,
	transactionHandler *handler.TransactionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// Market operations
	markets := r.Group("/markets")
	{
		markets.POST("", marketHandler.Create)
		markets.GET("", marketHandler.List)
		markets.GET("/:marketId", marketHandler.GetByID)
		markets.PUT("/:marketId/ledger-accounts", marketHandler.AttachLedgerAccounts)
		markets.PUT("/:marketId/status", marketHandler.UpdateStatus)
	}

	// Transaction operations
	transactions := r.Group("/transactions")
	{
		transactions.POST("", transactionHandler.Create)
		transactions.GET("", transactionHandler.List)
		transactions.GET("/:transactionId", transactionHandler.GetByID)
		transactions.PUT("/:transactionId/status", transactionHandler.UpdateStatus)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
