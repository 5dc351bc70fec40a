// Package service implements the application services behind the HTTP API and
// the reconciliation sweep. Services own orchestration and policy; atomicity
// of individual mutations lives in the repositories.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
)

// LedgerVerifier is the slice of the ledger client the registry needs to
// verify that addresses exist before binding them to a market
type LedgerVerifier interface {
	AccountExists(ctx context.Context, address string) (bool, error)
}

// MarketRegistry manages the market catalog and its supply counters
type MarketRegistry interface {
	CreateMarket(ctx context.Context, spec market.CreateSpec) (*market.Market, error)
	GetMarket(ctx context.Context, id uuid.UUID) (*market.Market, error)
	ListMarkets(ctx context.Context, filter market.Filter, page shared.Page) ([]*market.Market, int64, error)

	// AttachLedgerAccounts verifies both addresses exist on the external
	// ledger, then binds them to the market. Replays with identical addresses
	// succeed; differing addresses fail with ErrLedgerAccountMismatch.
	AttachLedgerAccounts(ctx context.Context, id uuid.UUID, marketAccount, bondMint string) (*market.Market, error)

	// RecordSale applies a signed bondsSold adjustment, positive for buys and
	// negative for sells, bounded to [0, totalSupply].
	RecordSale(ctx context.Context, id uuid.UUID, delta int64) (*market.Market, error)

	// SetStatus transitions the market through its status machine
	SetStatus(ctx context.Context, id uuid.UUID, next market.Status) (*market.Market, error)
}

// TransactionLedger manages trade intents and their settlement outcomes
type TransactionLedger interface {
	// RecordIntent stores a pending trade intent. Replaying a settlement
	// reference returns the stored record with created=false.
	RecordIntent(ctx context.Context, spec trade.IntentSpec) (txn *trade.Transaction, created bool, err error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*trade.Transaction, error)
	ListTransactions(ctx context.Context, filter trade.Filter, page shared.Page) ([]*trade.Transaction, int64, error)

	// ConfirmSettlement transitions pending->confirmed and applies the
	// transaction's supply delta to its market.
	ConfirmSettlement(ctx context.Context, id uuid.UUID, blockNumber *int64) (*trade.Transaction, error)

	// MarkFailed transitions pending->failed. No supply is moved.
	MarkFailed(ctx context.Context, id uuid.UUID) (*trade.Transaction, error)
}
