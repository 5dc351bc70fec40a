// Package mongo provides the MongoDB implementation of the transaction
// repository. Settlement-reference uniqueness is backed by a unique index and
// status transitions are single findOneAndUpdate operations so the guard and
// the write cannot be separated by a concurrent writer.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
)

const (
	// TransactionCollectionName is the name of the transaction collection in MongoDB
	TransactionCollectionName = "transactions"
)

// TransactionRepository implements the trade.Repository interface for MongoDB
type TransactionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new MongoDB transaction repository
func NewTransactionRepository(logger *slog.Logger, db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique settlement-reference index plus the query
// indexes the listing filters rely on. Safe to call on every startup.
func (r *TransactionRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(TransactionCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "settlement_reference", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "market_id", Value: 1}, {Key: "transaction_type", Value: 1}}},
		{Keys: bson.D{{Key: "buyer", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to ensure transaction indexes: %w", err)
	}

	return nil
}

// CreateOrGet inserts txn, returning the already-stored record instead when
// the settlement reference is taken. The uniqueness check rides on the unique
// index, so two racing inserts of the same reference resolve to one record.
func (r *TransactionRepository) CreateOrGet(ctx context.Context, txn *trade.Transaction) (*trade.Transaction, bool, error) {
	collection := r.db.Collection(TransactionCollectionName)

	_, err := collection.InsertOne(ctx, txn)
	if err == nil {
		return txn, true, nil
	}

	if mongo.IsDuplicateKeyError(err) {
		existing, getErr := r.GetBySettlementReference(ctx, txn.SettlementReference)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}

	r.logger.Error("Failed to create transaction",
		"transaction_id", txn.TransactionID.String(),
		"error", err)
	return nil, false, fmt.Errorf("failed to create transaction: %w", err)
}

// GetByID retrieves a transaction by its ID.
// Returns ErrTransactionNotFound if no record exists.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*trade.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"transaction_id": id}
	var txn trade.Transaction
	err := collection.FindOne(ctx, filter).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trade.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction",
			"transaction_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

// GetBySettlementReference retrieves a transaction by its external ledger
// reference. Returns ErrSettlementReferenceNotFound if no record exists.
func (r *TransactionRepository) GetBySettlementReference(ctx context.Context, reference string) (*trade.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	var txn trade.Transaction
	err := collection.FindOne(ctx, bson.M{"settlement_reference": reference}).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trade.ErrSettlementReferenceNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get transaction by settlement reference",
			"settlement_reference", reference,
			"error", err)
		return nil, fmt.Errorf("failed to get transaction by settlement reference: %w", err)
	}

	return &txn, nil
}

// List retrieves a page of transactions matching filter.
// Results are sorted newest first with a stable transaction_id tie-break.
func (r *TransactionRepository) List(ctx context.Context, filter trade.Filter, limit, offset int) ([]*trade.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "transaction_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, buildTransactionFilter(filter), opts)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txns []*trade.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		r.logger.Error("Failed to decode transactions", "error", err)
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return txns, nil
}

// Count counts transactions matching filter
func (r *TransactionRepository) Count(ctx context.Context, filter trade.Filter) (int64, error) {
	collection := r.db.Collection(TransactionCollectionName)

	count, err := collection.CountDocuments(ctx, buildTransactionFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// ConfirmPending transitions pending->confirmed in one findOneAndUpdate; the
// status filter makes the transition guard and the write a single operation.
func (r *TransactionRepository) ConfirmPending(ctx context.Context, id uuid.UUID, blockNumber *int64, confirmedAt time.Time) (*trade.Transaction, error) {
	set := bson.M{
		"status":       trade.StatusConfirmed,
		"confirmed_at": confirmedAt,
	}
	if blockNumber != nil {
		set["block_number"] = *blockNumber
	}

	return r.transitionPending(ctx, id, trade.StatusConfirmed, set)
}

// FailPending transitions pending->failed under the same guard
func (r *TransactionRepository) FailPending(ctx context.Context, id uuid.UUID) (*trade.Transaction, error) {
	return r.transitionPending(ctx, id, trade.StatusFailed, bson.M{"status": trade.StatusFailed})
}

func (r *TransactionRepository) transitionPending(ctx context.Context, id uuid.UUID, to trade.Status, set bson.M) (*trade.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"transaction_id": id, "status": trade.StatusPending}
	update := bson.M{"$set": set}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var txn trade.Transaction
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the transaction is missing or it already left pending.
			current, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, trade.ErrInvalidTransition{TransactionID: id, From: current.Status, To: to}
		}
		r.logger.Error("Failed to transition transaction status",
			"transaction_id", id.String(),
			"to", string(to),
			"error", err)
		return nil, fmt.Errorf("failed to transition transaction status: %w", err)
	}

	return &txn, nil
}

// ListStalePending returns pending transactions created before cutoff, oldest
// first, for the reconciliation sweep.
func (r *TransactionRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*trade.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{
		"status":     trade.StatusPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list stale pending transactions", "error", err)
		return nil, fmt.Errorf("failed to list stale pending transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txns []*trade.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		r.logger.Error("Failed to decode stale pending transactions", "error", err)
		return nil, fmt.Errorf("failed to decode stale pending transactions: %w", err)
	}

	return txns, nil
}

// buildTransactionFilter renders filter into a bson document
func buildTransactionFilter(filter trade.Filter) bson.M {
	query := bson.M{}
	if filter.MarketID != uuid.Nil {
		query["market_id"] = filter.MarketID
	}
	if filter.Buyer != "" {
		query["buyer"] = filter.Buyer
	}
	if filter.Seller != "" {
		query["seller"] = filter.Seller
	}
	if filter.TransactionType != "" {
		query["transaction_type"] = filter.TransactionType
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}
