package repository

import (
	"github.com/nimasrn/referral-ledger/internal/model"
)

type UserEntity struct {
	ID                    int64  `db:"id"                      gorm:"primaryKey;autoIncrement;column:id"`
	Name                  string `db:"name"                    gorm:"column:name;not null"`
	Role                  string `db:"role"                    gorm:"column:role;not null;index"`
	ReferralBalance       int64  `db:"referral_balance"        gorm:"column:referral_balance;not null;default:0"`
	TotalReferralEarnings int64  `db:"total_referral_earnings" gorm:"column:total_referral_earnings;not null;default:0"`
	TotalReferralsCount   int    `db:"total_referrals_count"   gorm:"column:total_referrals_count;not null;default:0"`
	ActiveReferralsCount  int    `db:"active_referrals_count"  gorm:"column:active_referrals_count;not null;default:0"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:                    m.ID,
		Name:                  m.Name,
		Role:                  string(m.Role),
		ReferralBalance:       m.ReferralBalance,
		TotalReferralEarnings: m.TotalReferralEarnings,
		TotalReferralsCount:   m.TotalReferralsCount,
		ActiveReferralsCount:  m.ActiveReferralsCount,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:                    e.ID,
		Name:                  e.Name,
		Role:                  model.UserRole(e.Role),
		ReferralBalance:       e.ReferralBalance,
		TotalReferralEarnings: e.TotalReferralEarnings,
		TotalReferralsCount:   e.TotalReferralsCount,
		ActiveReferralsCount:  e.ActiveReferralsCount,
	}
}
