package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCodeNotFound is returned when no referral code matches.
	ErrCodeNotFound = errors.New("referral code not found")
	// ErrCodeTaken is returned when a generated code collides with a
	// persisted one.
	ErrCodeTaken = errors.New("referral code already taken")
)

type ReferralCodeRepository struct {
	*pg.DB
}

func NewReferralCodeRepository(db *pg.DB) *ReferralCodeRepository {
	return &ReferralCodeRepository{
		db,
	}
}

func (r *ReferralCodeRepository) Create(ctx context.Context, code *model.ReferralCode) (*model.ReferralCode, error) {
	entity := toReferralCodeEntity(code)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCodeTaken
		}
		return nil, err
	}

	return toReferralCodeModel(entity), nil
}

// GetActiveByUserID returns the user's active code. One active code per
// user is the steady state; if several exist the oldest wins.
func (r *ReferralCodeRepository) GetActiveByUserID(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	var entity ReferralCodeEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	return toReferralCodeModel(&entity), nil
}

// GetByCode looks a code up by its exact value. Matching is
// case-sensitive; no normalization is applied.
func (r *ReferralCodeRepository) GetByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	var entity ReferralCodeEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("code = ?", code).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	return toReferralCodeModel(&entity), nil
}

func (r *ReferralCodeRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ReferralCodeEntity{}).
		Where("code = ?", code).
		Count(&count).
		Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Deactivate retires a code administratively. Existing relationships
// registered through it are unaffected.
func (r *ReferralCodeRepository) Deactivate(ctx context.Context, codeID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ReferralCodeEntity{}).
		Where("id = ? AND is_active = ?", codeID, true).
		Update("is_active", false)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCodeNotFound
	}

	return nil
}
