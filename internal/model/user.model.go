package model

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleExecutor UserRole = "executor"
	UserRoleMediator UserRole = "mediator"
	UserRoleAdmin    UserRole = "admin"
)

type User struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	Role                  UserRole `json:"role"`
	ReferralBalance       int64    `json:"referral_balance"`
	TotalReferralEarnings int64    `json:"total_referral_earnings"`
	TotalReferralsCount   int      `json:"total_referrals_count"`
	ActiveReferralsCount  int      `json:"active_referrals_count"`
}

func (User) TableName() string { return "users" }

// CanBeReferred reports whether the user is an eligible referred party.
// Only executors earn their referrer cashback.
func (u *User) CanBeReferred() bool {
	return u.Role == UserRoleExecutor
}
