package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Filter narrows transaction listings. Zero fields match everything.
type Filter struct {
	MarketID        uuid.UUID
	Buyer           string
	Seller          string
	TransactionType Type
	Status          Status
}

// Repository manages transaction persistence. Status transitions are guarded
// store operations: the current-status check and the write happen in one
// operation so a double-confirm or confirm-after-fail race cannot succeed.
type Repository interface {
	// CreateOrGet inserts txn, relying on the settlement reference's
	// uniqueness constraint. If a record with the same reference already
	// exists the stored record is returned with created=false and nothing is
	// written. This is the idempotent-retry contract for trade intake.
	CreateOrGet(ctx context.Context, txn *Transaction) (stored *Transaction, created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetBySettlementReference looks a transaction up by its external ledger
	// reference. Used by the settlement event stream, which does not carry
	// internal IDs.
	GetBySettlementReference(ctx context.Context, reference string) (*Transaction, error)

	List(ctx context.Context, filter Filter, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	// ConfirmPending transitions pending->confirmed, setting confirmedAt and
	// the optional block number. Fails with ErrInvalidTransition if the
	// record is no longer pending.
	ConfirmPending(ctx context.Context, id uuid.UUID, blockNumber *int64, confirmedAt time.Time) (*Transaction, error)

	// FailPending transitions pending->failed under the same guard.
	FailPending(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// ListStalePending returns pending transactions created before cutoff,
	// oldest first, for reconciliation.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
}

// ValidationError indicates malformed or out-of-range input
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// ErrSettlementReferenceNotFound indicates no transaction carries the given
// external ledger reference
type ErrSettlementReferenceNotFound struct {
	Reference string
}

func (e ErrSettlementReferenceNotFound) Error() string {
	return "no transaction with settlement reference: " + e.Reference
}

// ErrInvalidTransition indicates an attempt to move a transaction out of a
// terminal state
type ErrInvalidTransition struct {
	TransactionID uuid.UUID
	From          Status
	To            Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transaction %s cannot transition from %s to %s", e.TransactionID, e.From, e.To)
}
