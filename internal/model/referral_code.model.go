package model

import "time"

type ReferralCode struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

// SharePayload is the ready-to-share representation of a referral code
// returned by the my-referral-code endpoint.
type SharePayload struct {
	Code string `json:"code"`
	URL  string `json:"url"`
	Text string `json:"text"`
}
