// Package reconciler repairs divergence between the off-chain stores and the
// external settlement ledger. It periodically sweeps attached markets and
// stale pending transactions, resolving what it can and publishing alerts for
// what needs an operator.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/techSaswata/sebi-bondTokenizer/internal/config"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/market"
	"github.com/techSaswata/sebi-bondTokenizer/internal/domain/trade"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/ledger"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/messaging/producers"
	"github.com/techSaswata/sebi-bondTokenizer/internal/service"
)

// Alert kinds published to the reconciliation alert topic
const (
	AlertMarketDivergence  = "market_divergence"
	AlertSettlementExpired = "settlement_expired"
)

// Alert is the payload published when the sweep finds a divergence it cannot
// repair on its own
type Alert struct {
	Kind                string    `json:"kind"`
	MarketID            string    `json:"marketId,omitempty"`
	TransactionID       string    `json:"transactionId,omitempty"`
	SettlementReference string    `json:"settlementReference,omitempty"`
	Detail              string    `json:"detail"`
	DetectedAt          time.Time `json:"detectedAt"`
}

// LedgerReader is the slice of the ledger client the sweep needs
type LedgerReader interface {
	AccountExists(ctx context.Context, address string) (bool, error)
	GetSignatureStatus(ctx context.Context, reference string) (*ledger.SignatureStatus, error)
}

// Engine runs the reconciliation sweep. Records are checked concurrently on a
// bounded worker pool; one record's failure never aborts the sweep.
type Engine struct {
	logger     *slog.Logger
	marketRepo market.Repository
	tradeRepo  trade.Repository
	txnLedger  service.TransactionLedger
	ledger     LedgerReader
	alerts     producers.MessagePublisher
	pool       *ants.Pool

	sweepInterval time.Duration
	staleAfter    time.Duration
	batchSize     int
}

// NewEngine creates a reconciliation engine with its worker pool
func NewEngine(
	logger *slog.Logger,
	cfg *config.Config,
	marketRepo market.Repository,
	tradeRepo trade.Repository,
	txnLedger service.TransactionLedger,
	ledgerReader LedgerReader,
	alerts producers.MessagePublisher,
) (*Engine, error) {
	pool, err := ants.NewPool(cfg.WorkerPool.Size)
	if err != nil {
		return nil, err
	}

	return &Engine{
		logger:        logger,
		marketRepo:    marketRepo,
		tradeRepo:     tradeRepo,
		txnLedger:     txnLedger,
		ledger:        ledgerReader,
		alerts:        alerts,
		pool:          pool,
		sweepInterval: cfg.Reconciler.SweepInterval,
		staleAfter:    cfg.Reconciler.StaleAfter,
		batchSize:     cfg.Reconciler.BatchSize,
	}, nil
}

// Start runs periodic sweeps until context is canceled
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting reconciliation engine",
		"sweep_interval", e.sweepInterval.String(),
		"stale_after", e.staleAfter.String(),
		"batch_size", e.batchSize,
	)
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Reconciliation engine stopping due to context cancellation")
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single full sweep and waits for all checks to finish
func (e *Engine) RunOnce(ctx context.Context) {
	e.sweepMarkets(ctx)
	e.sweepTransactions(ctx)
}

// Shutdown releases the worker pool
func (e *Engine) Shutdown() {
	e.logger.Info("Shutting down reconciliation worker pool", "running_workers", e.pool.Running())
	e.pool.Release()
}

// sweepMarkets verifies every market with attached ledger accounts against
// the ledger, whatever its status, paging through the catalog until the
// batch comes back short. Active markets past their maturity date are
// flagged in the logs.
func (e *Engine) sweepMarkets(ctx context.Context) {
	attached := true
	filter := market.Filter{Attached: &attached}

	var wg sync.WaitGroup
	for offset := 0; ; offset += e.batchSize {
		markets, err := e.marketRepo.List(ctx, filter, e.batchSize, offset)
		if err != nil {
			e.logger.Error("Failed to list attached markets for reconciliation", "error", err)
			break
		}

		for _, m := range markets {
			m := m
			wg.Add(1)
			if err := e.pool.Submit(func() {
				defer wg.Done()
				e.checkMarket(ctx, m)
			}); err != nil {
				wg.Done()
				e.logger.Error("Failed to submit market check to worker pool",
					"market_id", m.MarketID.String(), "error", err)
			}
		}

		if len(markets) < e.batchSize {
			break
		}
	}
	wg.Wait()
}

func (e *Engine) checkMarket(ctx context.Context, m *market.Market) {
	if m.Status == market.StatusActive && m.MaturityDate.Before(time.Now()) {
		e.logger.Warn("Active market is past its maturity date",
			"market_id", m.MarketID.String(),
			"maturity_date", m.MaturityDate,
		)
	}

	if !m.Tradeable() {
		return
	}

	for _, address := range []string{m.MarketAccount, m.BondMint} {
		exists, err := e.ledger.AccountExists(ctx, address)
		if err != nil {
			e.logger.Error("Failed to verify market account on ledger",
				"market_id", m.MarketID.String(),
				"address", address,
				"error", err,
			)
			return
		}
		if !exists {
			e.publishAlert(ctx, m.MarketID.String(), Alert{
				Kind:       AlertMarketDivergence,
				MarketID:   m.MarketID.String(),
				Detail:     "attached ledger account " + address + " does not exist on the ledger",
				DetectedAt: time.Now().UTC(),
			})
			return
		}
	}
}

// sweepTransactions rechecks pending transactions older than staleAfter
// against the ledger and resolves them.
func (e *Engine) sweepTransactions(ctx context.Context) {
	cutoff := time.Now().Add(-e.staleAfter)
	txns, err := e.tradeRepo.ListStalePending(ctx, cutoff, e.batchSize)
	if err != nil {
		e.logger.Error("Failed to list stale pending transactions", "error", err)
		return
	}
	if len(txns) == 0 {
		e.logger.Debug("No stale pending transactions found")
		return
	}

	e.logger.Info("Rechecking stale pending transactions", "count", len(txns))

	var wg sync.WaitGroup
	for _, txn := range txns {
		txn := txn
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			e.checkTransaction(ctx, txn)
		}); err != nil {
			wg.Done()
			e.logger.Error("Failed to submit transaction check to worker pool",
				"transaction_id", txn.TransactionID.String(), "error", err)
		}
	}
	wg.Wait()
}

func (e *Engine) checkTransaction(ctx context.Context, txn *trade.Transaction) {
	status, err := e.ledger.GetSignatureStatus(ctx, txn.SettlementReference)
	if err != nil {
		e.logger.Error("Failed to query settlement status",
			"transaction_id", txn.TransactionID.String(),
			"settlement_reference", txn.SettlementReference,
			"error", err,
		)
		return
	}

	switch status.State {
	case ledger.StateFinalized:
		if _, err := e.txnLedger.ConfirmSettlement(ctx, txn.TransactionID, status.Slot); err != nil {
			e.logger.Error("Failed to confirm settled transaction",
				"transaction_id", txn.TransactionID.String(), "error", err)
			return
		}
		e.logger.Info("Reconciled stale transaction as confirmed",
			"transaction_id", txn.TransactionID.String(),
			"settlement_reference", txn.SettlementReference,
		)
	case ledger.StateFailed, ledger.StateNotFound:
		if _, err := e.txnLedger.MarkFailed(ctx, txn.TransactionID); err != nil {
			e.logger.Error("Failed to mark stale transaction as failed",
				"transaction_id", txn.TransactionID.String(), "error", err)
			return
		}
		e.publishAlert(ctx, txn.TransactionID.String(), Alert{
			Kind:                AlertSettlementExpired,
			TransactionID:       txn.TransactionID.String(),
			MarketID:            txn.MarketID.String(),
			SettlementReference: txn.SettlementReference,
			Detail:              "pending settlement resolved as " + string(status.State) + " after staleness window",
			DetectedAt:          time.Now().UTC(),
		})
	case ledger.StatePending:
		// Still in flight on the ledger side, leave it for the next sweep.
		e.logger.Debug("Stale transaction still pending on ledger",
			"transaction_id", txn.TransactionID.String())
	}
}

func (e *Engine) publishAlert(ctx context.Context, key string, alert Alert) {
	if err := e.alerts.Publish(ctx, key, alert); err != nil {
		e.logger.Error("Failed to publish reconciliation alert",
			"kind", alert.Kind,
			"key", key,
			"error", err,
		)
		return
	}
	e.logger.Warn("Reconciliation divergence detected",
		"kind", alert.Kind,
		"key", key,
		"detail", alert.Detail,
	)
}
