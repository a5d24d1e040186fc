package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient referral balance")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Get(ctx context.Context, userID int64) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

// CreditReferralEarnings applies a cashback credit atomically: both
// referral_balance and total_referral_earnings move together under a
// row lock, with automatic retry on transient failures.
func (r *UserRepository) CreditReferralEarnings(ctx context.Context, userID int64, amount int64) error {
	return r.withRetry(ctx, func() error {
		return r.creditAttempt(ctx, userID, amount)
	})
}

func (r *UserRepository) creditAttempt(ctx context.Context, userID int64, amount int64) error {
	var entity UserEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"referral_balance":        gorm.Expr("referral_balance + ?", amount),
			"total_referral_earnings": gorm.Expr("total_referral_earnings + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// DebitReferralBalance validates sufficiency and debits within the same
// locked read-then-write, so two concurrent debits can never both pass
// against a balance that only covers one of them.
func (r *UserRepository) DebitReferralBalance(ctx context.Context, userID int64, amount int64) error {
	return r.withRetry(ctx, func() error {
		return r.debitAttempt(ctx, userID, amount)
	})
}

func (r *UserRepository) debitAttempt(ctx context.Context, userID int64, amount int64) error {
	var entity UserEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if entity.ReferralBalance < amount {
		return ErrInsufficientBalance
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ? AND referral_balance >= ?", userID, amount).
		Update("referral_balance", gorm.Expr("referral_balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// ReverseReferralEarnings applies the exact inverse of an earlier credit
// to both referral_balance and total_referral_earnings. The balance check
// keeps the non-negative invariant when part of the credit has already
// been redeemed.
func (r *UserRepository) ReverseReferralEarnings(ctx context.Context, userID int64, amount int64) error {
	return r.withRetry(ctx, func() error {
		return r.reverseAttempt(ctx, userID, amount)
	})
}

func (r *UserRepository) reverseAttempt(ctx context.Context, userID int64, amount int64) error {
	var entity UserEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if entity.ReferralBalance < amount {
		return ErrInsufficientBalance
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"referral_balance":        gorm.Expr("referral_balance - ?", amount),
			"total_referral_earnings": gorm.Expr("total_referral_earnings - ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// IncrementReferralCounters bumps total and active referral counts when a
// new relationship is registered.
func (r *UserRepository) IncrementReferralCounters(ctx context.Context, referrerID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", referrerID).
		Updates(map[string]interface{}{
			"total_referrals_count":  gorm.Expr("total_referrals_count + 1"),
			"active_referrals_count": gorm.Expr("active_referrals_count + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DecrementActiveReferrals is called when a relationship is cancelled.
// The compare-and-set on the referral row guarantees it runs at most once
// per relationship.
func (r *UserRepository) DecrementActiveReferrals(ctx context.Context, referrerID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ? AND active_referrals_count > 0", referrerID).
		Update("active_referrals_count", gorm.Expr("active_referrals_count - 1"))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) withRetry(ctx context.Context, attempt func() error) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for i := 0; i <= maxRetries; i++ {
		err := attempt()

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		if errors.Is(err, ErrUserNotFound) ||
			errors.Is(err, ErrInsufficientBalance) {
			return err
		}

		if i < maxRetries {
			delay := baseDelay * time.Duration(1<<i) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}
