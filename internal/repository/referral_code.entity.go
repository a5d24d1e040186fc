package repository

import (
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
)

type ReferralCodeEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;index"`
	Code      string    `db:"code"       gorm:"column:code;not null;unique"`
	IsActive  bool      `db:"is_active"  gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ReferralCodeEntity) TableName() string {
	return "referral_codes"
}

func toReferralCodeEntity(m *model.ReferralCode) *ReferralCodeEntity {
	if m == nil {
		return nil
	}
	return &ReferralCodeEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Code:      m.Code,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}

func toReferralCodeModel(e *ReferralCodeEntity) *model.ReferralCode {
	if e == nil {
		return nil
	}
	return &model.ReferralCode{
		ID:        e.ID,
		UserID:    e.UserID,
		Code:      e.Code,
		IsActive:  e.IsActive,
		CreatedAt: e.CreatedAt,
	}
}
