package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a cashback transaction.
// A transaction is immutable once processed; the only further transition
// is a single reversal to cancelled.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusProcessed TransactionStatus = "processed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type ReferralTransaction struct {
	ID                  int64             `json:"id"`
	ReferralID          int64             `json:"referral_id"`
	ReferrerID          int64             `json:"referrer_id"`
	ReferredID          int64             `json:"referred_id"`
	SourceTransactionID string            `json:"source_transaction_id"`
	CashbackAmount      int64             `json:"cashback_amount"`
	CashbackPercentage  decimal.Decimal   `json:"cashback_percentage"`
	Status              TransactionStatus `json:"status"`
	ProcessedAt         *time.Time        `json:"processed_at"`
	CreatedAt           time.Time         `json:"created_at"`
}

func (ReferralTransaction) TableName() string { return "referral_transactions" }

// Redemption is an append-only record of a balance spend, so every
// mutation of referral_balance is accounted for in the log.
type Redemption struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (Redemption) TableName() string { return "referral_redemptions" }
