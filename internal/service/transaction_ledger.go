package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
)

type transactionLedger struct {
	logger  *slog.Logger
	repo    trade.Repository
	markets MarketRegistry
}

// NewTransactionLedger creates the transaction ledger service
func NewTransactionLedger(logger *slog.Logger, repo trade.Repository, markets MarketRegistry) TransactionLedger {
	return &transactionLedger{
		logger:  logger,
		repo:    repo,
		markets: markets,
	}
}

// RecordIntent validates the intent against its market and stores it pending.
// The settlement reference is the idempotency key: a replay returns the
// record stored by the first call, unchanged.
func (s *transactionLedger) RecordIntent(ctx context.Context, spec trade.IntentSpec) (*trade.Transaction, bool, error) {
	txn, err := trade.NewTransaction(spec)
	if err != nil {
		return nil, false, err
	}

	// Replays are resolved before any market-state checks: the stored record
	// stays retrievable even if its market was paused or matured since the
	// first call.
	existing, err := s.repo.GetBySettlementReference(ctx, spec.SettlementReference)
	if err == nil {
		s.logger.Info("Trade intent replayed, returning stored record",
			"transaction_id", existing.TransactionID.String(),
			"settlement_reference", existing.SettlementReference,
		)
		return existing, false, nil
	}
	var refNotFound trade.ErrSettlementReferenceNotFound
	if !errors.As(err, &refNotFound) {
		return nil, false, err
	}

	m, err := s.markets.GetMarket(ctx, spec.MarketID)
	if err != nil {
		return nil, false, err
	}
	if m.Status != market.StatusActive {
		return nil, false, trade.ValidationError{Field: "marketId", Reason: "market is not active"}
	}
	if spec.TransactionType.MovesSupply() && !m.Tradeable() {
		return nil, false, trade.ValidationError{Field: "marketId", Reason: "market has no ledger accounts attached"}
	}

	stored, created, err := s.repo.CreateOrGet(ctx, txn)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("Trade intent recorded",
			"transaction_id", stored.TransactionID.String(),
			"market_id", stored.MarketID.String(),
			"transaction_type", string(stored.TransactionType),
			"settlement_reference", stored.SettlementReference,
		)
	} else {
		s.logger.Info("Trade intent replayed, returning stored record",
			"transaction_id", stored.TransactionID.String(),
			"settlement_reference", stored.SettlementReference,
		)
	}
	return stored, created, nil
}

func (s *transactionLedger) GetTransaction(ctx context.Context, id uuid.UUID) (*trade.Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *transactionLedger) ListTransactions(ctx context.Context, filter trade.Filter, page shared.Page) ([]*trade.Transaction, int64, error) {
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	txns, err := s.repo.List(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

// ConfirmSettlement transitions the transaction to confirmed, then applies
// its supply delta to the market. A failed counter update after a successful
// confirm is logged and left to the reconciliation sweep; the settlement
// itself is a ledger fact and is never rolled back.
func (s *transactionLedger) ConfirmSettlement(ctx context.Context, id uuid.UUID, blockNumber *int64) (*trade.Transaction, error) {
	txn, err := s.repo.ConfirmPending(ctx, id, blockNumber, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if delta := txn.SupplyDelta(); delta != 0 {
		if _, saleErr := s.markets.RecordSale(ctx, txn.MarketID, delta); saleErr != nil {
			s.logger.Error("Confirmed settlement but supply update failed",
				"transaction_id", id.String(),
				"market_id", txn.MarketID.String(),
				"delta", delta,
				"error", saleErr,
			)
		}
	}

	s.logger.Info("Settlement confirmed",
		"transaction_id", id.String(),
		"settlement_reference", txn.SettlementReference,
	)
	return txn, nil
}

func (s *transactionLedger) MarkFailed(ctx context.Context, id uuid.UUID) (*trade.Transaction, error) {
	txn, err := s.repo.FailPending(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Settlement marked failed",
		"transaction_id", id.String(),
		"settlement_reference", txn.SettlementReference,
	)
	return txn, nil
}
