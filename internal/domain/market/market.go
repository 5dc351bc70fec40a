package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/shared"
)

// Status defines the lifecycle states of a market
type Status string

const (
	StatusActive  Status = "active"
	StatusMatured Status = "matured"
	StatusPaused  Status = "paused"
)

// IsValid reports whether s is a known market status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusMatured, StatusPaused:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// Allowed transitions: active->paused, active->matured, paused->active.
// matured is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusMatured
	case StatusPaused:
		return next == StatusActive
	}
	return false
}

// Market is the canonical off-chain record of a bond market. Monetary fields
// are stored in minor units; CouponRate is a percentage in [0,100].
type Market struct {
	MarketID         uuid.UUID `json:"marketId"`
	Issuer           string    `json:"issuer"`
	BondName         string    `json:"bondName"`
	BondSymbol       string    `json:"bondSymbol"`
	TotalSupply      int64     `json:"totalSupply"`
	BondsSold        int64     `json:"bondsSold"`
	TotalBondsIssued int64     `json:"totalBondsIssued"`
	FaceValue        int64     `json:"faceValue"`
	CurrentPrice     int64     `json:"currentPrice"`
	CouponRate       float64   `json:"couponRate"`
	MaturityDate     time.Time `json:"maturityDate"`
	Status           Status    `json:"status"`
	MarketAccount    string    `json:"marketAccount,omitempty"`
	BondMint         string    `json:"bondMint,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Tradeable reports whether the market has a confirmed on-chain counterpart.
// A market lacking either ledger address cannot settle trades.
func (m *Market) Tradeable() bool {
	return m.MarketAccount != "" && m.BondMint != ""
}

// CreateSpec carries the caller-supplied fields for a new market
type CreateSpec struct {
	Issuer       string
	BondName     string
	BondSymbol   string
	TotalSupply  int64
	FaceValue    int64
	CurrentPrice int64
	CouponRate   float64
	MaturityDate time.Time
}

// NewMarket validates spec and builds a market record in its initial state:
// status=active, bondsSold=0, no ledger accounts attached.
func NewMarket(spec CreateSpec) (*Market, error) {
	if !shared.IsLedgerAddress(spec.Issuer) {
		return nil, ValidationError{Field: "issuer", Reason: "not a valid ledger account identifier"}
	}
	if spec.BondName == "" {
		return nil, ValidationError{Field: "bondName", Reason: "must not be empty"}
	}
	if spec.BondSymbol == "" {
		return nil, ValidationError{Field: "bondSymbol", Reason: "must not be empty"}
	}
	if spec.TotalSupply < 0 {
		return nil, ValidationError{Field: "totalSupply", Reason: "must not be negative"}
	}
	if spec.FaceValue < 0 {
		return nil, ValidationError{Field: "faceValue", Reason: "must not be negative"}
	}
	if spec.CurrentPrice < 0 {
		return nil, ValidationError{Field: "currentPrice", Reason: "must not be negative"}
	}
	if spec.CouponRate < 0 || spec.CouponRate > 100 {
		return nil, ValidationError{Field: "couponRate", Reason: "must be between 0 and 100"}
	}
	if !spec.MaturityDate.After(time.Now()) {
		return nil, ValidationError{Field: "maturityDate", Reason: "must be in the future"}
	}

	now := time.Now().UTC()
	return &Market{
		MarketID:         uuid.New(),
		Issuer:           spec.Issuer,
		BondName:         spec.BondName,
		BondSymbol:       spec.BondSymbol,
		TotalSupply:      spec.TotalSupply,
		BondsSold:        0,
		TotalBondsIssued: 0,
		FaceValue:        spec.FaceValue,
		CurrentPrice:     spec.CurrentPrice,
		CouponRate:       spec.CouponRate,
		MaturityDate:     spec.MaturityDate,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
