package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
)

// Type defines possible trade operations
type Type string

const (
	TypeBuy         Type = "buy"
	TypeSell        Type = "sell"
	TypeCouponClaim Type = "coupon_claim"
	TypeRedeem      Type = "redeem"
)

// IsValid reports whether t is a known transaction type
func (t Type) IsValid() bool {
	switch t {
	case TypeBuy, TypeSell, TypeCouponClaim, TypeRedeem:
		return true
	}
	return false
}

// MovesSupply reports whether a confirmed transaction of this type changes a
// market's bondsSold counter
func (t Type) MovesSupply() bool {
	return t == TypeBuy || t == TypeSell
}

// Status defines transaction settlement states. pending is the only
// non-terminal state; confirmed and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Transaction records a trade intent and its settlement outcome. The
// settlement reference is the external ledger's transaction identifier and is
// globally unique across all records; it is the idempotency key preventing
// duplicate settlement recording.
type Transaction struct {
	TransactionID       uuid.UUID  `json:"transactionId" bson:"transaction_id"`
	MarketID            uuid.UUID  `json:"marketId" bson:"market_id"`
	Buyer               string     `json:"buyer" bson:"buyer"`
	Seller              string     `json:"seller,omitempty" bson:"seller,omitempty"`
	TransactionType     Type       `json:"transactionType" bson:"transaction_type"`
	BondQuantity        int64      `json:"bondQuantity" bson:"bond_quantity"`
	PricePerBond        int64      `json:"pricePerBond" bson:"price_per_bond"`
	TotalAmount         int64      `json:"totalAmount" bson:"total_amount"`
	SettlementReference string     `json:"settlementReference" bson:"settlement_reference"`
	BlockNumber         *int64     `json:"blockNumber,omitempty" bson:"block_number,omitempty"`
	Status              Status     `json:"status" bson:"status"`
	CreatedAt           time.Time  `json:"createdAt" bson:"created_at"`
	ConfirmedAt         *time.Time `json:"confirmedAt,omitempty" bson:"confirmed_at,omitempty"`
}

// SupplyDelta returns the signed bondsSold adjustment a confirmation of this
// transaction applies: buys consume supply, sells return it. Zero for types
// that do not move supply.
func (t *Transaction) SupplyDelta() int64 {
	switch t.TransactionType {
	case TypeBuy:
		return t.BondQuantity
	case TypeSell:
		return -t.BondQuantity
	}
	return 0
}

// IntentSpec carries the caller-supplied fields for a new trade intent
type IntentSpec struct {
	MarketID            uuid.UUID
	Buyer               string
	Seller              string
	TransactionType     Type
	BondQuantity        int64
	PricePerBond        int64
	SettlementReference string
}

// NewTransaction validates spec and builds a pending transaction record.
// TotalAmount is computed here so it is always consistent with its factors at
// the time of write.
func NewTransaction(spec IntentSpec) (*Transaction, error) {
	if spec.MarketID == uuid.Nil {
		return nil, ValidationError{Field: "marketId", Reason: "must not be empty"}
	}
	if !shared.IsLedgerAddress(spec.Buyer) {
		return nil, ValidationError{Field: "buyer", Reason: "not a valid ledger account identifier"}
	}
	if spec.Seller != "" && !shared.IsLedgerAddress(spec.Seller) {
		return nil, ValidationError{Field: "seller", Reason: "not a valid ledger account identifier"}
	}
	if !spec.TransactionType.IsValid() {
		return nil, ValidationError{Field: "transactionType", Reason: "unknown type"}
	}
	if spec.BondQuantity <= 0 {
		return nil, ValidationError{Field: "bondQuantity", Reason: "must be positive"}
	}
	if spec.PricePerBond <= 0 {
		return nil, ValidationError{Field: "pricePerBond", Reason: "must be positive"}
	}
	if spec.SettlementReference == "" {
		return nil, ValidationError{Field: "settlementReference", Reason: "must not be empty"}
	}

	return &Transaction{
		TransactionID:       uuid.New(),
		MarketID:            spec.MarketID,
		Buyer:               spec.Buyer,
		Seller:              spec.Seller,
		TransactionType:     spec.TransactionType,
		BondQuantity:        spec.BondQuantity,
		PricePerBond:        spec.PricePerBond,
		TotalAmount:         spec.BondQuantity * spec.PricePerBond,
		SettlementReference: spec.SettlementReference,
		Status:              StatusPending,
		CreatedAt:           time.Now().UTC(),
	}, nil
}
