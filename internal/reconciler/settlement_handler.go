package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
	"github.com/techSaswata/sebi-bondTokenizer/internal/service"
)

// SettlementEvent is the message carried on the settlement event topic. It is
// keyed by the ledger's settlement reference, not by internal IDs.
type SettlementEvent struct {
	SettlementReference string `json:"settlementReference"`
	Status              string `json:"status"`
	BlockNumber         *int64 `json:"blockNumber,omitempty"`
}

// SettlementEventHandler applies settlement events from Kafka to the
// transaction ledger. Duplicate deliveries are harmless: a transaction that
// already left pending is treated as handled.
type SettlementEventHandler struct {
	tradeRepo trade.Repository
	txnLedger service.TransactionLedger
	logger    *slog.Logger
}

// NewSettlementEventHandler creates a new handler
func NewSettlementEventHandler(
	logger *slog.Logger,
	tradeRepo trade.Repository,
	txnLedger service.TransactionLedger,
) *SettlementEventHandler {
	return &SettlementEventHandler{
		tradeRepo: tradeRepo,
		txnLedger: txnLedger,
		logger:    logger,
	}
}

// HandleMessage processes one settlement event from Kafka
func (h *SettlementEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event SettlementEvent
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal settlement event",
			"error", err,
			"message_key", string(key),
		)
		// A malformed event never becomes parseable, do not block the stream.
		return nil
	}
	if event.SettlementReference == "" {
		h.logger.Error("Settlement event missing settlement reference", "message_key", string(key))
		return nil
	}

	txn, err := h.tradeRepo.GetBySettlementReference(ctx, event.SettlementReference)
	if err != nil {
		var refNotFound trade.ErrSettlementReferenceNotFound
		if errors.As(err, &refNotFound) {
			// The intent may not be recorded yet; the sweep will catch it if
			// the event never reappears.
			h.logger.Warn("Settlement event for unknown reference",
				"settlement_reference", event.SettlementReference)
			return nil
		}
		return fmt.Errorf("failed to look up settlement reference %s: %w", event.SettlementReference, err)
	}

	switch trade.Status(event.Status) {
	case trade.StatusConfirmed:
		_, err = h.txnLedger.ConfirmSettlement(ctx, txn.TransactionID, event.BlockNumber)
	case trade.StatusFailed:
		_, err = h.txnLedger.MarkFailed(ctx, txn.TransactionID)
	default:
		h.logger.Error("Settlement event carries unknown status",
			"settlement_reference", event.SettlementReference,
			"status", event.Status,
		)
		return nil
	}

	if err != nil {
		var invalidTransition trade.ErrInvalidTransition
		if errors.As(err, &invalidTransition) {
			h.logger.Info("Settlement event duplicate, transaction already resolved",
				"transaction_id", txn.TransactionID.String(),
				"status", string(invalidTransition.From),
			)
			return nil
		}
		return fmt.Errorf("failed to apply settlement event for %s: %w", event.SettlementReference, err)
	}

	h.logger.Info("Applied settlement event",
		"transaction_id", txn.TransactionID.String(),
		"settlement_reference", event.SettlementReference,
		"status", event.Status,
	)
	return nil
}
