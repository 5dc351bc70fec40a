package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
)

type marketRegistry struct {
	logger *slog.Logger
	repo   market.Repository
	ledger LedgerVerifier
}

// NewMarketRegistry creates the market registry service
func NewMarketRegistry(logger *slog.Logger, repo market.Repository, ledger LedgerVerifier) MarketRegistry {
	return &marketRegistry{
		logger: logger,
		repo:   repo,
		ledger: ledger,
	}
}

func (s *marketRegistry) CreateMarket(ctx context.Context, spec market.CreateSpec) (*market.Market, error) {
	m, err := market.NewMarket(spec)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Market created",
		"market_id", m.MarketID.String(),
		"issuer", m.Issuer,
		"bond_symbol", m.BondSymbol,
	)
	return m, nil
}

func (s *marketRegistry) GetMarket(ctx context.Context, id uuid.UUID) (*market.Market, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *marketRegistry) ListMarkets(ctx context.Context, filter market.Filter, page shared.Page) ([]*market.Market, int64, error) {
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	markets, err := s.repo.List(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}

	return markets, total, nil
}

// AttachLedgerAccounts verifies both addresses against the external ledger
// before binding them. A transient ledger failure aborts the attach so a
// market is never bound to unverified addresses.
func (s *marketRegistry) AttachLedgerAccounts(ctx context.Context, id uuid.UUID, marketAccount, bondMint string) (*market.Market, error) {
	if !shared.IsLedgerAddress(marketAccount) {
		return nil, market.ValidationError{Field: "marketAccount", Reason: "not a valid ledger account identifier"}
	}
	if !shared.IsLedgerAddress(bondMint) {
		return nil, market.ValidationError{Field: "bondMint", Reason: "not a valid ledger account identifier"}
	}

	if err := s.verifyOnLedger(ctx, "marketAccount", marketAccount); err != nil {
		return nil, err
	}
	if err := s.verifyOnLedger(ctx, "bondMint", bondMint); err != nil {
		return nil, err
	}

	m, err := s.repo.AttachLedgerAccounts(ctx, id, marketAccount, bondMint)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ledger accounts attached",
		"market_id", id.String(),
		"market_account", marketAccount,
		"bond_mint", bondMint,
	)
	return m, nil
}

func (s *marketRegistry) verifyOnLedger(ctx context.Context, field, address string) error {
	exists, err := s.ledger.AccountExists(ctx, address)
	if err != nil {
		return err
	}
	if !exists {
		return market.ValidationError{Field: field, Reason: "account does not exist on the ledger"}
	}
	return nil
}

func (s *marketRegistry) RecordSale(ctx context.Context, id uuid.UUID, delta int64) (*market.Market, error) {
	m, err := s.repo.AdjustBondsSold(ctx, id, delta)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sale recorded",
		"market_id", id.String(),
		"delta", delta,
		"bonds_sold", m.BondsSold,
	)
	return m, nil
}

func (s *marketRegistry) SetStatus(ctx context.Context, id uuid.UUID, next market.Status) (*market.Market, error) {
	if !next.IsValid() {
		return nil, market.ValidationError{Field: "status", Reason: "unknown status"}
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, market.ErrInvalidStatusTransition{MarketID: id, From: current.Status, To: next}
	}

	// The repository re-checks the expected status inside the update, so a
	// concurrent transition between the read and the write still fails.
	m, err := s.repo.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Market status updated",
		"market_id", id.String(),
		"from", string(current.Status),
		"to", string(next),
	)
	return m, nil
}
