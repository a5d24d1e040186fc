package repository

import (
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/shopspring/decimal"
)

type ReferralTransactionEntity struct {
	ID                  int64           `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	ReferralID          int64           `db:"referral_id"           gorm:"column:referral_id;not null;index"`
	ReferrerID          int64           `db:"referrer_id"           gorm:"column:referrer_id;not null;index"`
	ReferredID          int64           `db:"referred_id"           gorm:"column:referred_id;not null;index"`
	SourceTransactionID string          `db:"source_transaction_id" gorm:"column:source_transaction_id;not null;unique"`
	CashbackAmount      int64           `db:"cashback_amount"       gorm:"column:cashback_amount;not null"`
	CashbackPercentage  decimal.Decimal `db:"cashback_percentage"   gorm:"column:cashback_percentage;type:decimal(10,4);not null"`
	Status              string          `db:"status"                gorm:"column:status;not null;index"`
	ProcessedAt         *time.Time      `db:"processed_at"          gorm:"column:processed_at"`
	CreatedAt           time.Time       `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
}

func (ReferralTransactionEntity) TableName() string {
	return "referral_transactions"
}

func toReferralTransactionEntity(m *model.ReferralTransaction) *ReferralTransactionEntity {
	if m == nil {
		return nil
	}
	return &ReferralTransactionEntity{
		ID:                  m.ID,
		ReferralID:          m.ReferralID,
		ReferrerID:          m.ReferrerID,
		ReferredID:          m.ReferredID,
		SourceTransactionID: m.SourceTransactionID,
		CashbackAmount:      m.CashbackAmount,
		CashbackPercentage:  m.CashbackPercentage,
		Status:              string(m.Status),
		ProcessedAt:         m.ProcessedAt,
		CreatedAt:           m.CreatedAt,
	}
}

func toReferralTransactionModel(e *ReferralTransactionEntity) *model.ReferralTransaction {
	if e == nil {
		return nil
	}
	return &model.ReferralTransaction{
		ID:                  e.ID,
		ReferralID:          e.ReferralID,
		ReferrerID:          e.ReferrerID,
		ReferredID:          e.ReferredID,
		SourceTransactionID: e.SourceTransactionID,
		CashbackAmount:      e.CashbackAmount,
		CashbackPercentage:  e.CashbackPercentage,
		Status:              model.TransactionStatus(e.Status),
		ProcessedAt:         e.ProcessedAt,
		CreatedAt:           e.CreatedAt,
	}
}

type RedemptionEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;index"`
	Amount    int64     `db:"amount"     gorm:"column:amount;not null"`
	Reason    string    `db:"reason"     gorm:"column:reason"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (RedemptionEntity) TableName() string {
	return "referral_redemptions"
}

func toRedemptionEntity(m *model.Redemption) *RedemptionEntity {
	if m == nil {
		return nil
	}
	return &RedemptionEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Amount:    m.Amount,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

func toRedemptionModel(e *RedemptionEntity) *model.Redemption {
	if e == nil {
		return nil
	}
	return &model.Redemption{
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
}
