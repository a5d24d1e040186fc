package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrReferralNotFound is returned when no relationship matches.
	ErrReferralNotFound = errors.New("referral not found")
	// ErrDuplicatePair is returned when a (referrer, referred) pair
	// already exists. The unique index is the last line of defense
	// against concurrent registrations with the same code.
	ErrDuplicatePair = errors.New("referral pair already exists")
)

type ReferralRepository struct {
	*pg.DB
}

func NewReferralRepository(db *pg.DB) *ReferralRepository {
	return &ReferralRepository{
		db,
	}
}

func (r *ReferralRepository) Create(ctx context.Context, referral *model.Referral) (*model.Referral, error) {
	entity := toReferralEntity(referral)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePair
		}
		return nil, err
	}

	return toReferralModel(entity), nil
}

func (r *ReferralRepository) Get(ctx context.Context, referralID int64) (*model.Referral, error) {
	var entity ReferralEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", referralID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}

	return toReferralModel(&entity), nil
}

// GetActiveByReferredID returns the active relationship in which the
// given user is the referred party. A user can be referred at most once.
func (r *ReferralRepository) GetActiveByReferredID(ctx context.Context, referredID int64) (*model.Referral, error) {
	var entity ReferralEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("referred_id = ? AND status = ?", referredID, string(model.ReferralStatusActive)).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}

	return toReferralModel(&entity), nil
}

func (r *ReferralRepository) PairExists(ctx context.Context, referrerID, referredID int64) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		Count(&count).
		Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// UpdateStatus performs a compare-and-set transition on the status
// column. It reports false without error when the row was not in the
// expected state, so two concurrent cancels resolve to exactly one
// winner.
func (r *ReferralRepository) UpdateStatus(ctx context.Context, referralID int64, from, to model.ReferralStatus) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("id = ? AND status = ?", referralID, string(from)).
		Update("status", string(to))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// ListByReferrer returns one page of the referrer's relationships, each
// joined with the referred user's name and its processed cashback
// aggregates.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID int64, limit, offset int) ([]*model.ReferralListItem, int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("referrer_id = ?", referrerID).
		Count(&total).
		Error
	if err != nil {
		return nil, 0, err
	}

	query := r.Read(ctx).WithContext(ctx).
		Table("referrals AS r").
		Select(`
            r.id                                     AS id,
            r.referred_id                            AS referred_id,
            COALESCE(u.name, '')                     AS referred_name,
            r.status                                 AS status,
            r.created_at                             AS created_at,

            COALESCE(SUM(CASE WHEN t.status = 'processed' THEN t.cashback_amount ELSE 0 END), 0) AS total_cashback,
            COUNT(t.id)                              AS transaction_count
        `).
		Joins("LEFT JOIN users AS u ON u.id = r.referred_id").
		Joins("LEFT JOIN referral_transactions AS t ON t.referral_id = r.id").
		Where("r.referrer_id = ?", referrerID).
		Group(`
            r.id,
            r.referred_id,
            u.name,
            r.status,
            r.created_at
        `).
		Order("r.created_at DESC").
		Limit(limit).
		Offset(offset)

	var entities []*ReferralListEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	items := make([]*model.ReferralListItem, len(entities))
	for i, e := range entities {
		items[i] = toReferralListItem(e)
	}

	return items, total, nil
}
