package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

// ErrRegistrationDeclined is the umbrella for every business rule that
// blocks a registration from creating a relationship. Callers in the
// user-registration flow check errors.Is against it, log, and carry on:
// attribution is fail-open, the registration itself must never be
// aborted by the referral subsystem.
var ErrRegistrationDeclined = errors.New("referral registration declined")

var (
	ErrProgramDisabled   = fmt.Errorf("%w: program disabled", ErrRegistrationDeclined)
	ErrCodeUnusable      = fmt.Errorf("%w: code not found or inactive", ErrRegistrationDeclined)
	ErrSelfReferral      = fmt.Errorf("%w: own referral code", ErrRegistrationDeclined)
	ErrIneligibleRole    = fmt.Errorf("%w: user role not eligible", ErrRegistrationDeclined)
	ErrAlreadyReferred   = fmt.Errorf("%w: pair already registered", ErrRegistrationDeclined)
	ErrReferralCancelled = errors.New("referral already cancelled")
)

// Validation message categories returned by ValidateCode.
const (
	MsgCodeEmpty          = "referral code is empty"
	MsgCodeTooLong        = "referral code is too long"
	MsgCodeNotFound       = "referral code not found"
	MsgCodeInactive       = "referral code is no longer active"
	MsgProgramUnavailable = "referral program is unavailable"
	MsgOwnCode            = "you cannot use your own referral code"
	MsgCodeValid          = "referral code is valid"
)

// maxCodeInputLength caps what validate accepts before even touching
// storage; issued codes are always 8 characters.
const maxCodeInputLength = 20

type UserRepository interface {
	Get(ctx context.Context, userID int64) (*model.User, error)
	CreditReferralEarnings(ctx context.Context, userID int64, amount int64) error
	DebitReferralBalance(ctx context.Context, userID int64, amount int64) error
	ReverseReferralEarnings(ctx context.Context, userID int64, amount int64) error
	IncrementReferralCounters(ctx context.Context, referrerID int64) error
	DecrementActiveReferrals(ctx context.Context, referrerID int64) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReferralRepository interface {
	Create(ctx context.Context, referral *model.Referral) (*model.Referral, error)
	Get(ctx context.Context, referralID int64) (*model.Referral, error)
	GetActiveByReferredID(ctx context.Context, referredID int64) (*model.Referral, error)
	PairExists(ctx context.Context, referrerID, referredID int64) (bool, error)
	UpdateStatus(ctx context.Context, referralID int64, from, to model.ReferralStatus) (bool, error)
	ListByReferrer(ctx context.Context, referrerID int64, limit, offset int) ([]*model.ReferralListItem, int64, error)
}

// ReferralService is the registry of referrer↔referred relationships.
type ReferralService struct {
	users     UserRepository
	codes     ReferralCodeRepository
	referrals ReferralRepository
	settings  *SettingsService
}

func NewReferralService(users UserRepository, codes ReferralCodeRepository, referrals ReferralRepository, settings *SettingsService) *ReferralService {
	return &ReferralService{
		users:     users,
		codes:     codes,
		referrals: referrals,
		settings:  settings,
	}
}

// ProcessRegistration attributes a newly registered user to the owner of
// the presented code. Declines return an error wrapping
// ErrRegistrationDeclined and never a partial write; the relationship
// insert and the referrer counter bump happen in one storage
// transaction.
func (s *ReferralService) ProcessRegistration(ctx context.Context, newUserID int64, code string) (*model.Referral, error) {
	if !s.settings.GetBool(ctx, SettingProgramEnabled, true) {
		return nil, ErrProgramDisabled
	}

	newUser, err := s.users.Get(ctx, newUserID)
	if err != nil {
		return nil, err
	}

	refCode, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrCodeUnusable
		}
		return nil, err
	}
	if !refCode.IsActive {
		return nil, ErrCodeUnusable
	}

	if refCode.UserID == newUser.ID {
		return nil, ErrSelfReferral
	}

	if !newUser.CanBeReferred() {
		return nil, ErrIneligibleRole
	}

	// Fast-path check; the unique index on (referrer_id, referred_id)
	// settles the race between concurrent registrations.
	exists, err := s.referrals.PairExists(ctx, refCode.UserID, newUser.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyReferred
	}

	var created *model.Referral
	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		referral, err := s.referrals.Create(ctx, &model.Referral{
			ReferrerID:     refCode.UserID,
			ReferredID:     newUser.ID,
			ReferralCodeID: refCode.ID,
			Status:         model.ReferralStatusActive,
		})
		if err != nil {
			return err
		}

		if err := s.users.IncrementReferralCounters(ctx, refCode.UserID); err != nil {
			return fmt.Errorf("increment referral counters: %w", err)
		}

		created = referral
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}

	logger.Info("referral registered",
		"referrer_id", created.ReferrerID,
		"referred_id", created.ReferredID,
		"referral_code_id", created.ReferralCodeID)

	return created, nil
}

// ValidateCode answers whether a code could be used by the requester.
// It never returns an error: every outcome is a structured result with
// a message category. Matching is exact and case-sensitive.
func (s *ReferralService) ValidateCode(ctx context.Context, code string, requesterID int64) model.CodeValidation {
	if strings.TrimSpace(code) == "" {
		return model.CodeValidation{Valid: false, Message: MsgCodeEmpty}
	}
	if len(code) > maxCodeInputLength {
		return model.CodeValidation{Valid: false, Message: MsgCodeTooLong}
	}

	if !s.settings.GetBool(ctx, SettingProgramEnabled, true) {
		return model.CodeValidation{Valid: false, Message: MsgProgramUnavailable}
	}

	refCode, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrCodeNotFound) {
			logger.Error("validate code: lookup failed", "error", err)
		}
		return model.CodeValidation{Valid: false, Message: MsgCodeNotFound}
	}

	if !refCode.IsActive {
		return model.CodeValidation{Valid: false, Message: MsgCodeInactive}
	}

	if requesterID != 0 && refCode.UserID == requesterID {
		return model.CodeValidation{Valid: false, Message: MsgOwnCode}
	}

	referrerName := ""
	if owner, err := s.users.Get(ctx, refCode.UserID); err == nil {
		referrerName = owner.Name
	}

	pct := s.settings.GetDecimal(ctx, SettingCashbackPercentage, decimal.RequireFromString(DefaultCashbackPercentage))

	return model.CodeValidation{
		Valid:              true,
		ReferrerName:       referrerName,
		CashbackPercentage: pct.String(),
		Message:            MsgCodeValid,
	}
}

// Cancel transitions a relationship active → cancelled exactly once and
// decrements the referrer's active count in the same transaction. A
// second call reports ErrReferralCancelled and changes nothing.
func (s *ReferralService) Cancel(ctx context.Context, referralID int64) error {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return err
	}

	return s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.referrals.UpdateStatus(ctx, referralID, model.ReferralStatusActive, model.ReferralStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrReferralCancelled
		}

		return s.users.DecrementActiveReferrals(ctx, referral.ReferrerID)
	})
}
