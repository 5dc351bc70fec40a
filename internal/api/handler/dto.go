package handler

import "time"

// CreateMarketRequest is the request body for creating a market.
// Monetary amounts are integers in minor units; couponRate is a percentage.
type CreateMarketRequest struct {
	Issuer       string    `json:"issuer" binding:"required"`
	BondName     string    `json:"bondName" binding:"required"`
	BondSymbol   string    `json:"bondSymbol" binding:"required"`
	TotalSupply  int64     `json:"totalSupply"`
	FaceValue    int64     `json:"faceValue"`
	CurrentPrice int64     `json:"currentPrice"`
	CouponRate   float64   `json:"couponRate"`
	MaturityDate time.Time `json:"maturityDate" binding:"required"`
}

// AttachLedgerAccountsRequest binds on-chain addresses to a market
type AttachLedgerAccountsRequest struct {
	MarketAccount string `json:"marketAccount" binding:"required"`
	BondMint      string `json:"bondMint" binding:"required"`
}

// UpdateMarketStatusRequest requests a market status transition
type UpdateMarketStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateTransactionRequest is the request body for recording a trade intent
type CreateTransactionRequest struct {
	MarketID            string `json:"marketId" binding:"required"`
	Buyer               string `json:"buyer" binding:"required"`
	Seller              string `json:"seller"`
	TransactionType     string `json:"transactionType" binding:"required"`
	BondQuantity        int64  `json:"bondQuantity" binding:"required"`
	PricePerBond        int64  `json:"pricePerBond" binding:"required"`
	SettlementReference string `json:"settlementReference" binding:"required"`
}

// UpdateTransactionStatusRequest resolves a pending settlement.
// Status must be "confirmed" or "failed"; blockNumber is optional and only
// meaningful for confirmations.
type UpdateTransactionStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	BlockNumber *int64 `json:"blockNumber"`
}
