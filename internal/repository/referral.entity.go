package repository

import (
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
)

type ReferralEntity struct {
	ID             int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ReferrerID     int64     `db:"referrer_id"      gorm:"column:referrer_id;not null;uniqueIndex:idx_referral_pair;index"`
	ReferredID     int64     `db:"referred_id"      gorm:"column:referred_id;not null;uniqueIndex:idx_referral_pair;index"`
	ReferralCodeID int64     `db:"referral_code_id" gorm:"column:referral_code_id;not null;index"`
	Status         string    `db:"status"           gorm:"column:status;not null;index"`
	CreatedAt      time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (ReferralEntity) TableName() string {
	return "referrals"
}

func toReferralEntity(m *model.Referral) *ReferralEntity {
	if m == nil {
		return nil
	}
	return &ReferralEntity{
		ID:             m.ID,
		ReferrerID:     m.ReferrerID,
		ReferredID:     m.ReferredID,
		ReferralCodeID: m.ReferralCodeID,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}

func toReferralModel(e *ReferralEntity) *model.Referral {
	if e == nil {
		return nil
	}
	return &model.Referral{
		ID:             e.ID,
		ReferrerID:     e.ReferrerID,
		ReferredID:     e.ReferredID,
		ReferralCodeID: e.ReferralCodeID,
		Status:         model.ReferralStatus(e.Status),
		CreatedAt:      e.CreatedAt,
	}
}

// ReferralListEntity is the projected row of the paginated listing query:
// one relationship joined with the referred user's name and its cashback
// aggregates.
type ReferralListEntity struct {
	ID               int64     `gorm:"column:id"`
	ReferredID       int64     `gorm:"column:referred_id"`
	ReferredName     string    `gorm:"column:referred_name"`
	Status           string    `gorm:"column:status"`
	TotalCashback    int64     `gorm:"column:total_cashback"`
	TransactionCount int64     `gorm:"column:transaction_count"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func toReferralListItem(e *ReferralListEntity) *model.ReferralListItem {
	if e == nil {
		return nil
	}
	return &model.ReferralListItem{
		ID:               e.ID,
		ReferredID:       e.ReferredID,
		ReferredName:     e.ReferredName,
		Status:           model.ReferralStatus(e.Status),
		TotalCashback:    e.TotalCashback,
		TransactionCount: e.TransactionCount,
		RegisteredAt:     e.CreatedAt,
	}
}
