package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive integer")
	ErrInsufficientBalance = errors.New("insufficient referral balance")
	ErrInvalidPagination   = errors.New("invalid pagination parameters")
	ErrUserNotFound        = errors.New("user not found")
)

const (
	minPerPage = 1
	maxPerPage = 100
)

type RedemptionRepository interface {
	Create(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error)
}

// ReferralStats is the read-only summary served by the stats endpoint.
// Monetary figures are carried in minor units; the major-unit values
// are derived for display only.
type ReferralStats struct {
	Code               string  `json:"code"`
	TotalReferrals     int     `json:"total_referrals"`
	ActiveReferrals    int     `json:"active_referrals"`
	Balance            int64   `json:"balance"`
	BalanceMajor       float64 `json:"balance_major"`
	TotalEarnings      int64   `json:"total_earnings"`
	TotalEarningsMajor float64 `json:"total_earnings_major"`
	CashbackPercentage string  `json:"cashback_percentage"`
	ProgramEnabled     bool    `json:"program_enabled"`
}

// AccountService is the query/redemption facade over the ledger.
type AccountService struct {
	users       UserRepository
	referrals   ReferralRepository
	redemptions RedemptionRepository
	code        *CodeService
	settings    *SettingsService
}

func NewAccountService(users UserRepository, referrals ReferralRepository, redemptions RedemptionRepository, code *CodeService, settings *SettingsService) *AccountService {
	return &AccountService{
		users:       users,
		referrals:   referrals,
		redemptions: redemptions,
		code:        code,
		settings:    settings,
	}
}

// UseBalance spends amount from the user's referral balance. Validation
// and the debit run in the same atomic unit, so two concurrent spends
// cannot both clear against a balance that only covers one. Returns the
// remaining balance.
func (s *AccountService) UseBalance(ctx context.Context, userID int64, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	err := s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.DebitReferralBalance(ctx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("debit referral balance: %w", err)
		}

		_, err := s.redemptions.Create(ctx, &model.Redemption{
			UserID: userID,
			Amount: amount,
			Reason: reason,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	logger.Info("referral balance redeemed",
		"user_id", userID,
		"amount", amount,
		"remaining", user.ReferralBalance)

	return user.ReferralBalance, nil
}

// GetStats returns the user's referral summary. A user with no code and
// no relationships gets zeros and an empty code, not an error.
func (s *AccountService) GetStats(ctx context.Context, userID int64) (*ReferralStats, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	code := ""
	if c, err := s.code.codes.GetActiveByUserID(ctx, userID); err == nil {
		code = c.Code
	} else if !errors.Is(err, repository.ErrCodeNotFound) {
		return nil, err
	}

	pct := s.settings.GetDecimal(ctx, SettingCashbackPercentage, decimal.RequireFromString(DefaultCashbackPercentage))

	return &ReferralStats{
		Code:               code,
		TotalReferrals:     user.TotalReferralsCount,
		ActiveReferrals:    user.ActiveReferralsCount,
		Balance:            user.ReferralBalance,
		BalanceMajor:       toMajorUnits(user.ReferralBalance),
		TotalEarnings:      user.TotalReferralEarnings,
		TotalEarningsMajor: toMajorUnits(user.TotalReferralEarnings),
		CashbackPercentage: pct.String(),
		ProgramEnabled:     s.settings.GetBool(ctx, SettingProgramEnabled, true),
	}, nil
}

// GetMyCode lazily issues the user's code and wraps it in a share
// payload built from the configured share base URL.
func (s *AccountService) GetMyCode(ctx context.Context, userID int64) (*model.ReferralCode, *model.SharePayload, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	code, err := s.code.CreateForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	base := s.settings.Get(ctx, SettingShareBaseURL, DefaultShareBaseURL)
	share := &model.SharePayload{
		Code: code.Code,
		URL:  fmt.Sprintf("%s?ref=%s", base, code.Code),
		Text: fmt.Sprintf("Sign up with my referral code %s and I earn cashback on your deposits: %s?ref=%s", code.Code, base, code.Code),
	}

	return code, share, nil
}

// ListReferrals returns one page of the user's relationships. page
// starts at 1; perPage is bounded to [1,100]. Out-of-range input is
// rejected, not clamped.
func (s *AccountService) ListReferrals(ctx context.Context, userID int64, page, perPage int) (*model.ReferralPage, error) {
	if page < 1 || perPage < minPerPage || perPage > maxPerPage {
		return nil, ErrInvalidPagination
	}

	offset := (page - 1) * perPage
	items, total, err := s.referrals.ListByReferrer(ctx, userID, perPage, offset)
	if err != nil {
		return nil, err
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	return &model.ReferralPage{
		Items: items,
		Pagination: model.Pagination{
			CurrentPage: page,
			LastPage:    lastPage,
			PerPage:     perPage,
			Total:       total,
		},
	}, nil
}

// toMajorUnits derives the display figure; storage and comparisons stay
// in minor units.
func toMajorUnits(minor int64) float64 {
	return float64(minor) / 100
}
