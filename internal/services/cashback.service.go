package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionProcessed is reported by ProcessPending when the
	// transaction already left the pending state.
	ErrTransactionProcessed = errors.New("transaction already processed")
	// ErrTransactionCancelled is reported by CancelTransaction when the
	// reversal has already happened.
	ErrTransactionCancelled = errors.New("transaction already cancelled")
)

var oneHundred = decimal.NewFromInt(100)

type ReferralTransactionRepository interface {
	Create(ctx context.Context, txn *model.ReferralTransaction) (*model.ReferralTransaction, error)
	Get(ctx context.Context, txnID int64) (*model.ReferralTransaction, error)
	GetBySourceTransactionID(ctx context.Context, sourceTxnID string) (*model.ReferralTransaction, error)
	UpdateStatus(ctx context.Context, txnID int64, from, to model.TransactionStatus) (bool, error)
	MarkProcessed(ctx context.Context, txnID int64, processedAt time.Time) (bool, error)
}

// CashbackService computes and credits referral cashback for validated
// wallet deposit events.
type CashbackService struct {
	users     UserRepository
	referrals ReferralRepository
	txns      ReferralTransactionRepository
	settings  *SettingsService
	now       func() time.Time
}

func NewCashbackService(users UserRepository, referrals ReferralRepository, txns ReferralTransactionRepository, settings *SettingsService) *CashbackService {
	return &CashbackService{
		users:     users,
		referrals: referrals,
		txns:      txns,
		settings:  settings,
		now:       time.Now,
	}
}

// WithClock overrides the timestamp source. Test hook.
func (s *CashbackService) WithClock(now func() time.Time) *CashbackService {
	s.now = now
	return s
}

// ProcessDeposit turns a deposit event into a processed cashback
// transaction, or into nothing at all. The no-transaction outcomes
// (wrong event kind, no active relationship, disabled program, amount
// below the minimum, duplicate source) are normal traffic and return
// (nil, nil). On a creditable amount the transaction row and the
// referrer's balance/earnings move in one storage transaction.
func (s *CashbackService) ProcessDeposit(ctx context.Context, event model.DepositEvent) (*model.ReferralTransaction, error) {
	if !event.Creditable() {
		return nil, nil
	}

	if !s.settings.GetBool(ctx, SettingProgramEnabled, true) {
		return nil, nil
	}

	referral, err := s.referrals.GetActiveByReferredID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrReferralNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Redelivery guard; the unique index on source_transaction_id is
	// the authoritative one.
	if _, err := s.txns.GetBySourceTransactionID(ctx, event.TransactionID); err == nil {
		logger.Info("cashback already recorded, skipping",
			"source_transaction_id", event.TransactionID)
		return nil, nil
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	// The percentage is read fresh on every call so an administrative
	// change applies to the next deposit, not the next process restart.
	pct := s.settings.GetDecimal(ctx, SettingCashbackPercentage, decimal.RequireFromString(DefaultCashbackPercentage))

	credited := computeCashback(event.Amount, pct,
		s.settings.GetInt64(ctx, SettingMinCashbackAmount, 0),
		s.settings.GetInt64(ctx, SettingMaxCashbackPerTxn, 0),
	)
	if credited <= 0 {
		return nil, nil
	}

	processedAt := s.now()

	var created *model.ReferralTransaction
	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.txns.Create(ctx, &model.ReferralTransaction{
			ReferralID:          referral.ID,
			ReferrerID:          referral.ReferrerID,
			ReferredID:          referral.ReferredID,
			SourceTransactionID: event.TransactionID,
			CashbackAmount:      credited,
			CashbackPercentage:  pct,
			Status:              model.TransactionStatusProcessed,
			ProcessedAt:         &processedAt,
		})
		if err != nil {
			return err
		}

		if err := s.users.CreditReferralEarnings(ctx, referral.ReferrerID, credited); err != nil {
			return fmt.Errorf("credit referral earnings: %w", err)
		}

		created = txn
		return nil
	})
	if err != nil {
		// Lost the redelivery race after the pre-check: already credited.
		if errors.Is(err, repository.ErrDuplicateSource) {
			return nil, nil
		}
		return nil, err
	}

	logger.Info("cashback credited",
		"referrer_id", created.ReferrerID,
		"referred_id", created.ReferredID,
		"cashback_amount", created.CashbackAmount,
		"source_transaction_id", created.SourceTransactionID)

	return created, nil
}

// ProcessPending applies a pending transaction's credit exactly once.
// Only the pending → processed transition applies money; a transaction
// already processed reports ErrTransactionProcessed and changes
// nothing.
func (s *CashbackService) ProcessPending(ctx context.Context, txnID int64) error {
	txn, err := s.txns.Get(ctx, txnID)
	if err != nil {
		return err
	}

	return s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.txns.MarkProcessed(ctx, txnID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrTransactionProcessed
		}

		return s.users.CreditReferralEarnings(ctx, txn.ReferrerID, txn.CashbackAmount)
	})
}

// CancelTransaction reverses a processed transaction exactly once: the
// exact original cashback_amount is taken back from both the balance
// and the lifetime earnings, atomically with the status flip. A second
// cancel reports ErrTransactionCancelled and leaves the ledger
// untouched.
func (s *CashbackService) CancelTransaction(ctx context.Context, txnID int64) error {
	txn, err := s.txns.Get(ctx, txnID)
	if err != nil {
		return err
	}

	return s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.txns.UpdateStatus(ctx, txnID, model.TransactionStatusProcessed, model.TransactionStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTransactionCancelled
		}

		if err := s.users.ReverseReferralEarnings(ctx, txn.ReferrerID, txn.CashbackAmount); err != nil {
			return fmt.Errorf("reverse referral earnings: %w", err)
		}

		logger.Info("cashback reversed",
			"transaction_id", txn.ID,
			"referrer_id", txn.ReferrerID,
			"cashback_amount", txn.CashbackAmount)

		return nil
	})
}

// computeCashback applies the rate and the program limits.
// raw = round-half-up(amount × pct / 100) in minor units; below the
// minimum the whole cashback is discarded, above the cap it is
// truncated to the cap. min/max of zero disable the respective limit.
func computeCashback(amount int64, pct decimal.Decimal, min, max int64) int64 {
	raw := decimal.NewFromInt(amount).
		Mul(pct).
		Div(oneHundred).
		Round(0).
		IntPart()

	if raw <= 0 {
		return 0
	}
	if min > 0 && raw < min {
		return 0
	}
	if max > 0 && raw > max {
		return max
	}

	return raw
}
