package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
)

// codeAlphabet is the 32-symbol charset for referral codes. Visually
// ambiguous symbols (0, O, 1, I) are excluded. 32 divides 256, so
// indexing random bytes by modulo carries no bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// maxGenerateAttempts bounds collision regeneration. With 32^8 possible
// codes a handful of retries is already paranoid.
const maxGenerateAttempts = 25

var ErrCodeSpaceExhausted = errors.New("could not generate a unique referral code")

type ReferralCodeRepository interface {
	Create(ctx context.Context, code *model.ReferralCode) (*model.ReferralCode, error)
	GetActiveByUserID(ctx context.Context, userID int64) (*model.ReferralCode, error)
	GetByCode(ctx context.Context, code string) (*model.ReferralCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeService issues unique, human-friendly referral codes.
type CodeService struct {
	codes ReferralCodeRepository
}

func NewCodeService(codes ReferralCodeRepository) *CodeService {
	return &CodeService{
		codes: codes,
	}
}

// GenerateUniqueCode draws 8 symbols uniformly from the alphabet and
// re-draws on collision with a persisted code. The unique index on the
// codes table is the backstop for the draw/insert race.
func (s *CodeService) GenerateUniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}

		exists, err := s.codes.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: gave up after %d attempts", ErrCodeSpaceExhausted, maxGenerateAttempts)
}

// CreateForUser returns the user's existing active code, or generates,
// persists and activates a new one. Idempotent.
func (s *CodeService) CreateForUser(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	existing, err := s.codes.GetActiveByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrCodeNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := s.GenerateUniqueCode(ctx)
		if err != nil {
			return nil, err
		}

		created, err := s.codes.Create(ctx, &model.ReferralCode{
			UserID:   userID,
			Code:     code,
			IsActive: true,
		})
		if err != nil {
			// Lost the insert race to a concurrent generation; redraw.
			if errors.Is(err, repository.ErrCodeTaken) {
				continue
			}
			return nil, err
		}

		return created, nil
	}

	return nil, ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(out), nil
}
