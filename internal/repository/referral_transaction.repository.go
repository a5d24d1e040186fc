package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrTransactionNotFound is returned when no cashback transaction matches.
	ErrTransactionNotFound = errors.New("referral transaction not found")
	// ErrDuplicateSource is returned when a cashback transaction already
	// exists for the source deposit. The unique index makes a redelivered
	// deposit event unable to double-credit.
	ErrDuplicateSource = errors.New("cashback already recorded for source transaction")
)

type ReferralTransactionRepository struct {
	*pg.DB
}

func NewReferralTransactionRepository(db *pg.DB) *ReferralTransactionRepository {
	return &ReferralTransactionRepository{
		db,
	}
}

func (r *ReferralTransactionRepository) Create(ctx context.Context, txn *model.ReferralTransaction) (*model.ReferralTransaction, error) {
	entity := toReferralTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateSource
		}
		return nil, err
	}

	return toReferralTransactionModel(entity), nil
}

func (r *ReferralTransactionRepository) Get(ctx context.Context, txnID int64) (*model.ReferralTransaction, error) {
	var entity ReferralTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", txnID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return toReferralTransactionModel(&entity), nil
}

func (r *ReferralTransactionRepository) GetBySourceTransactionID(ctx context.Context, sourceTxnID string) (*model.ReferralTransaction, error) {
	var entity ReferralTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("source_transaction_id = ?", sourceTxnID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return toReferralTransactionModel(&entity), nil
}

// UpdateStatus performs a compare-and-set transition on the status
// column; false means the row was not in the expected state and nothing
// changed.
func (r *ReferralTransactionRepository) UpdateStatus(ctx context.Context, txnID int64, from, to model.TransactionStatus) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ReferralTransactionEntity{}).
		Where("id = ? AND status = ?", txnID, string(from)).
		Update("status", string(to))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// MarkProcessed stamps processed_at together with the status transition.
func (r *ReferralTransactionRepository) MarkProcessed(ctx context.Context, txnID int64, processedAt time.Time) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ReferralTransactionEntity{}).
		Where("id = ? AND status = ?", txnID, string(model.TransactionStatusPending)).
		Updates(map[string]interface{}{
			"status":       string(model.TransactionStatusProcessed),
			"processed_at": processedAt,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// SumProcessedByReferrer is the invariant aggregate: total processed
// cashback minus reversed equals the referrer's lifetime earnings.
func (r *ReferralTransactionRepository) SumProcessedByReferrer(ctx context.Context, referrerID int64) (int64, error) {
	var sum int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ReferralTransactionEntity{}).
		Select("COALESCE(SUM(cashback_amount), 0)").
		Where("referrer_id = ? AND status = ?", referrerID, string(model.TransactionStatusProcessed)).
		Scan(&sum).
		Error

	if err != nil {
		return 0, err
	}

	return sum, nil
}

type RedemptionRepository struct {
	*pg.DB
}

func NewRedemptionRepository(db *pg.DB) *RedemptionRepository {
	return &RedemptionRepository{
		db,
	}
}

func (r *RedemptionRepository) Create(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error) {
	entity := toRedemptionEntity(redemption)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRedemptionModel(entity), nil
}

func (r *RedemptionRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&RedemptionEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).
		Error

	if err != nil {
		return 0, err
	}

	return sum, nil
}
