// Package postgres provides the PostgreSQL implementation of the market
// repository. Counter and status mutations are expressed as single
// conditional updates so their invariants hold under concurrent writers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/persistence"
)

const marketColumns = `market_id, issuer, bond_name, bond_symbol, total_supply, bonds_sold, total_bonds_issued,
		face_value, current_price, coupon_rate, maturity_date, status,
		COALESCE(market_account, ''), COALESCE(bond_mint, ''), created_at, updated_at`

// MarketRepository implements the market.Repository interface for PostgreSQL
type MarketRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewMarketRepository creates a new PostgreSQL market repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewMarketRepository(logger *slog.Logger, db *persistence.PostgresDB) market.Repository {
	return &MarketRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new market record
func (r *MarketRepository) Create(ctx context.Context, m *market.Market) error {
	query := `
		INSERT INTO markets (market_id, issuer, bond_name, bond_symbol, total_supply, bonds_sold, total_bonds_issued,
			face_value, current_price, coupon_rate, maturity_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		m.MarketID,
		m.Issuer,
		m.BondName,
		m.BondSymbol,
		m.TotalSupply,
		m.BondsSold,
		m.TotalBondsIssued,
		m.FaceValue,
		m.CurrentPrice,
		m.CouponRate,
		m.MaturityDate,
		m.Status,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create market", "error", err)
		return fmt.Errorf("failed to create market: %w", err)
	}

	return nil
}

// GetByID retrieves a market by its ID
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*market.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE market_id = $1
	`

	m, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, market.ErrMarketNotFound{MarketID: id}
		}
		r.logger.Error("Failed to get market", "market_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	return m, nil
}

// List retrieves a page of markets matching filter, newest first with a
// stable market_id tie-break.
func (r *MarketRepository) List(ctx context.Context, filter market.Filter, limit, offset int) ([]*market.Market, error) {
	where, args := buildMarketFilter(filter)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT `+marketColumns+`
		FROM markets
		%s
		ORDER BY created_at DESC, market_id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list markets", "error", err)
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []*market.Market
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate market rows: %w", err)
	}

	return markets, nil
}

// Count counts markets matching filter
func (r *MarketRepository) Count(ctx context.Context, filter market.Filter) (int64, error) {
	where, args := buildMarketFilter(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM markets %s`, where)

	var total int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count markets", "error", err)
		return 0, fmt.Errorf("failed to count markets: %w", err)
	}

	return total, nil
}

// AdjustBondsSold atomically applies bonds_sold += delta. The bound check and
// the increment are one conditional update, so concurrent sales can never
// push the counter outside [0, total_supply] or lose an update.
func (r *MarketRepository) AdjustBondsSold(ctx context.Context, id uuid.UUID, delta int64) (*market.Market, error) {
	query := `
		UPDATE markets
		SET bonds_sold = bonds_sold + $2, updated_at = NOW()
		WHERE market_id = $1 AND bonds_sold + $2 >= 0 AND bonds_sold + $2 <= total_supply
		RETURNING ` + marketColumns + `
	`

	m, err := r.scanRow(r.querier.QueryRow(ctx, query, id, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the market is missing or the guard rejected the delta.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, market.ErrCapacityExceeded{MarketID: id, Delta: delta}
		}
		r.logger.Error("Failed to adjust bonds sold", "market_id", id.String(), "delta", delta, "error", err)
		return nil, fmt.Errorf("failed to adjust bonds sold: %w", err)
	}

	return m, nil
}

// AttachLedgerAccounts binds on-chain addresses to a market. The idempotency
// guard lives in the WHERE clause: a replay with identical addresses matches
// and rewrites the same values, differing addresses match nothing.
func (r *MarketRepository) AttachLedgerAccounts(ctx context.Context, id uuid.UUID, marketAccount, bondMint string) (*market.Market, error) {
	query := `
		UPDATE markets
		SET market_account = $2, bond_mint = $3, updated_at = NOW()
		WHERE market_id = $1
			AND (market_account IS NULL OR market_account = $2)
			AND (bond_mint IS NULL OR bond_mint = $3)
		RETURNING ` + marketColumns + `
	`

	m, err := r.scanRow(r.querier.QueryRow(ctx, query, id, marketAccount, bondMint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, market.ErrLedgerAccountMismatch{MarketID: id}
		}
		r.logger.Error("Failed to attach ledger accounts", "market_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to attach ledger accounts: %w", err)
	}

	return m, nil
}

// UpdateStatus performs a guarded status transition. The expected-status
// check is part of the update, so a concurrent transition makes this one fail
// rather than silently overwrite it.
func (r *MarketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next market.Status) (*market.Market, error) {
	query := `
		UPDATE markets
		SET status = $3, updated_at = NOW()
		WHERE market_id = $1 AND status = $2
		RETURNING ` + marketColumns + `
	`

	m, err := r.scanRow(r.querier.QueryRow(ctx, query, id, expected, next))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, market.ErrInvalidStatusTransition{MarketID: id, From: current.Status, To: next}
		}
		r.logger.Error("Failed to update market status", "market_id", id.String(), "status", string(next), "error", err)
		return nil, fmt.Errorf("failed to update market status: %w", err)
	}

	return m, nil
}

func (r *MarketRepository) scanRow(row pgx.Row) (*market.Market, error) {
	var m market.Market
	err := row.Scan(
		&m.MarketID,
		&m.Issuer,
		&m.BondName,
		&m.BondSymbol,
		&m.TotalSupply,
		&m.BondsSold,
		&m.TotalBondsIssued,
		&m.FaceValue,
		&m.CurrentPrice,
		&m.CouponRate,
		&m.MaturityDate,
		&m.Status,
		&m.MarketAccount,
		&m.BondMint,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// buildMarketFilter renders filter into a WHERE clause with positional args
func buildMarketFilter(filter market.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Issuer != "" {
		args = append(args, filter.Issuer)
		clauses = append(clauses, fmt.Sprintf("issuer = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Attached != nil {
		if *filter.Attached {
			clauses = append(clauses, "market_account IS NOT NULL AND bond_mint IS NOT NULL")
		} else {
			clauses = append(clauses, "(market_account IS NULL OR bond_mint IS NULL)")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
