package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/queue"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/nimasrn/referral-ledger/pkg/prom"
)

type CashbackService interface {
	ProcessDeposit(ctx context.Context, event model.DepositEvent) (*model.ReferralTransaction, error)
}

type DepositProcessor struct {
	cashback    CashbackService
	idempotency *IdempotencyService
}

func NewDepositProcessor(cashback CashbackService, idempotency *IdempotencyService) *DepositProcessor {
	return &DepositProcessor{
		cashback:    cashback,
		idempotency: idempotency,
	}
}

func (p *DepositProcessor) GetType() string {
	return "deposit"
}

// Process consumes one wallet deposit event and credits cashback with
// idempotency guarantees.
func (p *DepositProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse event
	var event model.DepositEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal deposit event", "error", err)
		return err // Return error to trigger DLQ move
	}
	if err := event.Validate(); err != nil {
		logger.Error("Malformed deposit event", "error", err, "transaction_id", event.TransactionID)
		return err
	}

	// Step 2: Acquire processing lock keyed by the wallet transaction
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, event.TransactionID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Event already handled - ACK to remove from queue
			logger.Info("Deposit already handled, skipping", "transaction_id", event.TransactionID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Max retries exceeded - ACK to move to DLQ
			logger.Error("Max retries exceeded", "transaction_id", event.TransactionID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is processing - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "transaction_id", event.TransactionID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "transaction_id", event.TransactionID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing deposit event",
		"transaction_id", event.TransactionID,
		"user_id", event.UserID,
		"amount", event.Amount,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Run the cashback engine
	txn, err := p.cashback.ProcessDeposit(ctx, event)
	if err != nil {
		logger.Error("Failed to process deposit", "transaction_id", event.TransactionID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "transaction_id", event.TransactionID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4: Record outcome and mark the event done. txn == nil means a
	// business no-op (no relationship, disabled program, below minimum);
	// those are handled, not failed.
	if txn != nil {
		prom.AddCashbackCredited(float64(txn.CashbackAmount))
		prom.IncCashbackTransactions("processed")
		logger.Info("Cashback credited",
			"transaction_id", event.TransactionID,
			"referrer_id", txn.ReferrerID,
			"cashback_amount", txn.CashbackAmount,
			"retry_count", procCtx.RetryCount)
	} else {
		prom.IncCashbackTransactions("skipped")
		logger.Info("Deposit produced no cashback", "transaction_id", event.TransactionID)
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "transaction_id", event.TransactionID, "error", markErr)
		// Continue - the ledger write already happened
	}

	return nil // ACK event
}
