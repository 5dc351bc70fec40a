package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Filter narrows market listings. Nil/zero fields match everything.
type Filter struct {
	Issuer   string
	Status   Status
	Attached *bool // true: only markets with ledger accounts attached
}

// Repository defines market persistence operations. Counter and status
// mutations are single guarded store operations so concurrent writers can
// never lose updates or bypass the supply bound.
type Repository interface {
	Create(ctx context.Context, m *Market) error
	GetByID(ctx context.Context, id uuid.UUID) (*Market, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Market, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	// AdjustBondsSold atomically applies bonds_sold += delta, failing with
	// ErrCapacityExceeded when the result would leave the counter outside
	// [0, total_supply]. The check and the increment are one conditional
	// update; partial application is impossible.
	AdjustBondsSold(ctx context.Context, id uuid.UUID, delta int64) (*Market, error)

	// AttachLedgerAccounts binds the on-chain addresses to a market.
	// Re-attaching identical addresses succeeds (idempotent replay);
	// differing addresses fail with ErrLedgerAccountMismatch.
	AttachLedgerAccounts(ctx context.Context, id uuid.UUID, marketAccount, bondMint string) (*Market, error)

	// UpdateStatus performs a guarded transition from expected to next in a
	// single conditional update, failing with ErrInvalidStatusTransition if
	// the stored status no longer matches expected.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status) (*Market, error)
}

// ValidationError indicates malformed or out-of-range input
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// ErrMarketNotFound indicates missing market
type ErrMarketNotFound struct {
	MarketID uuid.UUID
}

func (e ErrMarketNotFound) Error() string {
	return "market not found: " + e.MarketID.String()
}

// ErrCapacityExceeded indicates a sale that would push bondsSold outside
// [0, totalSupply]
type ErrCapacityExceeded struct {
	MarketID uuid.UUID
	Delta    int64
}

func (e ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("sale of %d bonds would exceed capacity of market %s", e.Delta, e.MarketID)
}

// ErrLedgerAccountMismatch indicates an attach attempt with addresses that
// differ from the ones already bound to the market
type ErrLedgerAccountMismatch struct {
	MarketID uuid.UUID
}

func (e ErrLedgerAccountMismatch) Error() string {
	return "market " + e.MarketID.String() + " is already bound to different ledger accounts"
}

// ErrInvalidStatusTransition indicates a status-machine violation
type ErrInvalidStatusTransition struct {
	MarketID uuid.UUID
	From     Status
	To       Status
}

func (e ErrInvalidStatusTransition) Error() string {
	return fmt.Sprintf("market %s cannot transition from %s to %s", e.MarketID, e.From, e.To)
}
