package model

import "time"

// ReferralStatus is the lifecycle state of a referrer↔referred relationship.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActive    ReferralStatus = "active"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

type Referral struct {
	ID             int64          `json:"id"`
	ReferrerID     int64          `json:"referrer_id"`
	ReferredID     int64          `json:"referred_id"`
	ReferralCodeID int64          `json:"referral_code_id"`
	Status         ReferralStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Referral) TableName() string { return "referrals" }

// ReferralListItem is one row of the paginated referrals listing:
// the relationship plus per-relationship cashback aggregates.
type ReferralListItem struct {
	ID               int64          `json:"id"`
	ReferredID       int64          `json:"referred_id"`
	ReferredName     string         `json:"referred_name"`
	Status           ReferralStatus `json:"status"`
	TotalCashback    int64          `json:"total_cashback"`
	TransactionCount int64          `json:"transaction_count"`
	RegisteredAt     time.Time      `json:"registered_at"`
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

type ReferralPage struct {
	Items      []*ReferralListItem `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

// CodeValidation is the structured result of validating a referral code.
// Validation never fails with an error; invalid codes carry a message
// explaining the category of rejection.
type CodeValidation struct {
	Valid              bool   `json:"valid"`
	ReferrerName       string `json:"referrer_name,omitempty"`
	CashbackPercentage string `json:"cashback_percentage,omitempty"`
	Message            string `json:"message"`
}
